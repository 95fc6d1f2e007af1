package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvOwnershipServiceURL    = "OWNERSHIP_SERVICE_URL"
	EnvIdentityServiceURL     = "IDENTITY_SERVICE_URL"
	EnvFairnessServiceURL     = "FAIRNESS_SERVICE_URL"
	EnvReservationsServiceURL = "RESERVATIONS_SERVICE_URL"
	EnvCollaboratorTimeout    = "COLLABORATOR_TIMEOUT"
	EnvCollaboratorBackoff    = "COLLABORATOR_RETRY_BACKOFF"

	EnvBookingGracePeriod    = "BOOKING_GRACE_PERIOD"
	EnvVehicleLockTTL        = "VEHICLE_LOCK_TTL"
	EnvSuggestionHorizonDays = "SUGGESTION_HORIZON_DAYS"
	EnvMaxSuggestions        = "MAX_SUGGESTIONS"
	EnvFairnessGateBookings  = "FAIRNESS_GATE_BOOKINGS"

	EnvFairnessWeight            = "FAIRNESS_WEIGHT"
	EnvPriorityThreshold         = "PRIORITY_THRESHOLD"
	EnvImbalanceWarnThreshold    = "IMBALANCE_WARN_THRESHOLD"
	EnvCriticalCancellationRate  = "CRITICAL_CANCELLATION_RATE"
	EnvFairnessWindowDays        = "FAIRNESS_WINDOW_DAYS"
	EnvCountInUseReservations    = "COUNT_IN_USE_RESERVATIONS"
	EnvFairnessSummaryCacheTTL   = "FAIRNESS_SUMMARY_CACHE_TTL"

	EnvCheckpointValidMinutes = "CHECKPOINT_VALID_MINUTES"
	EnvCheckpointSweepEvery   = "CHECKPOINT_SWEEP_INTERVAL"
)
