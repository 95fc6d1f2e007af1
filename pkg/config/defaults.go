package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "fleetshare"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = "localhost:6379"

	DefaultPort = "8080"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultOwnershipServiceURL    = "http://localhost:8091"
	DefaultIdentityServiceURL     = "http://localhost:8092"
	DefaultFairnessServiceURL     = "http://localhost:8082"
	DefaultReservationsServiceURL = "http://localhost:8081"
	DefaultCollaboratorTimeout    = 3 * time.Second
	DefaultCollaboratorBackoff    = 250 * time.Millisecond

	// Requests starting slightly in the past are still accepted; clock skew
	// between clients and the scheduler is expected.
	DefaultBookingGracePeriod    = 5 * time.Minute
	DefaultVehicleLockTTL        = 10 * time.Second
	DefaultSuggestionHorizonDays = 14
	DefaultMaxSuggestions        = 5
	DefaultFairnessGateBookings  = false

	// One point of ownership/usage gap costs two points of fairness score,
	// so a 50-point gap bottoms out at zero.
	DefaultFairnessWeight           = 2.0
	DefaultPriorityThreshold        = 10.0
	DefaultImbalanceWarnThreshold   = 20.0
	DefaultCriticalCancellationRate = 0.5
	DefaultFairnessWindowDays       = 30
	DefaultCountInUseReservations   = false
	DefaultFairnessSummaryCacheTTL  = 60 * time.Second

	DefaultCheckpointValidMinutes = 30
	DefaultCheckpointSweepEvery   = 1 * time.Minute

	DefaultPaginationLimit = 100
)
