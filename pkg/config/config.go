package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"fleetshare/pkg/client"
	"fleetshare/pkg/logger"
)

// Config carries everything a service needs, loaded from the environment
// once at startup and injected explicitly. Nothing reads ambient globals.
type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	OwnershipServiceURL    string
	IdentityServiceURL     string
	FairnessServiceURL     string
	ReservationsServiceURL string
	CollaboratorTimeout    time.Duration
	CollaboratorBackoff    time.Duration

	BookingGracePeriod    time.Duration
	VehicleLockTTL        time.Duration
	SuggestionHorizonDays int
	MaxSuggestions        int
	FairnessGateBookings  bool

	FairnessWeight           float64
	PriorityThreshold        float64
	ImbalanceWarnThreshold   float64
	CriticalCancellationRate float64
	FairnessWindowDays       int
	CountInUseReservations   bool
	FairnessSummaryCacheTTL  time.Duration

	CheckpointValidMinutes int
	CheckpointSweepEvery   time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, 0),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		OwnershipServiceURL:    getEnvStr(EnvOwnershipServiceURL, DefaultOwnershipServiceURL),
		IdentityServiceURL:     getEnvStr(EnvIdentityServiceURL, DefaultIdentityServiceURL),
		FairnessServiceURL:     getEnvStr(EnvFairnessServiceURL, DefaultFairnessServiceURL),
		ReservationsServiceURL: getEnvStr(EnvReservationsServiceURL, DefaultReservationsServiceURL),
		CollaboratorTimeout:    getEnvDuration(EnvCollaboratorTimeout, DefaultCollaboratorTimeout),
		CollaboratorBackoff:    getEnvDuration(EnvCollaboratorBackoff, DefaultCollaboratorBackoff),

		BookingGracePeriod:    getEnvDuration(EnvBookingGracePeriod, DefaultBookingGracePeriod),
		VehicleLockTTL:        getEnvDuration(EnvVehicleLockTTL, DefaultVehicleLockTTL),
		SuggestionHorizonDays: getEnvNum(EnvSuggestionHorizonDays, DefaultSuggestionHorizonDays),
		MaxSuggestions:        getEnvNum(EnvMaxSuggestions, DefaultMaxSuggestions),
		FairnessGateBookings:  getEnvBool(EnvFairnessGateBookings, DefaultFairnessGateBookings),

		FairnessWeight:           getEnvFloat(EnvFairnessWeight, DefaultFairnessWeight),
		PriorityThreshold:        getEnvFloat(EnvPriorityThreshold, DefaultPriorityThreshold),
		ImbalanceWarnThreshold:   getEnvFloat(EnvImbalanceWarnThreshold, DefaultImbalanceWarnThreshold),
		CriticalCancellationRate: getEnvFloat(EnvCriticalCancellationRate, DefaultCriticalCancellationRate),
		FairnessWindowDays:       getEnvNum(EnvFairnessWindowDays, DefaultFairnessWindowDays),
		CountInUseReservations:   getEnvBool(EnvCountInUseReservations, DefaultCountInUseReservations),
		FairnessSummaryCacheTTL:  getEnvDuration(EnvFairnessSummaryCacheTTL, DefaultFairnessSummaryCacheTTL),

		CheckpointValidMinutes: getEnvNum(EnvCheckpointValidMinutes, DefaultCheckpointValidMinutes),
		CheckpointSweepEvery:   getEnvDuration(EnvCheckpointSweepEvery, DefaultCheckpointSweepEvery),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects the shared Redis client. A failed connection is logged
// and left nil; callers degrade by skipping the cache.
func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	for name, d := range map[string]time.Duration{
		"MongoConnTimeout":     cfg.MongoConnTimeout,
		"RateLimitWindow":      cfg.RateLimitWindow,
		"RequestTimeout":       cfg.RequestTimeout,
		"IdempotencyTTL":       cfg.IdempotencyTTL,
		"ReadTimeout":          cfg.ReadTimeout,
		"WriteTimeout":         cfg.WriteTimeout,
		"IdleTimeout":          cfg.IdleTimeout,
		"ShutdownTimeout":      cfg.ShutdownTimeout,
		"CollaboratorTimeout":  cfg.CollaboratorTimeout,
		"VehicleLockTTL":       cfg.VehicleLockTTL,
		"CheckpointSweepEvery": cfg.CheckpointSweepEvery,
	} {
		if d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", name, d))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.BookingGracePeriod < 0 {
		errors = append(errors, fmt.Sprintf("BookingGracePeriod cannot be negative, got: %s", cfg.BookingGracePeriod))
	}
	if cfg.SuggestionHorizonDays <= 0 {
		errors = append(errors, fmt.Sprintf("SuggestionHorizonDays must be positive, got: %d", cfg.SuggestionHorizonDays))
	}
	if cfg.MaxSuggestions <= 0 {
		errors = append(errors, fmt.Sprintf("MaxSuggestions must be positive, got: %d", cfg.MaxSuggestions))
	}
	if cfg.FairnessWeight <= 0 {
		errors = append(errors, fmt.Sprintf("FairnessWeight must be positive, got: %f", cfg.FairnessWeight))
	}
	if cfg.PriorityThreshold < 0 || cfg.PriorityThreshold > 100 {
		errors = append(errors, fmt.Sprintf("PriorityThreshold must be in [0,100], got: %f", cfg.PriorityThreshold))
	}
	if cfg.ImbalanceWarnThreshold < 0 || cfg.ImbalanceWarnThreshold > 100 {
		errors = append(errors, fmt.Sprintf("ImbalanceWarnThreshold must be in [0,100], got: %f", cfg.ImbalanceWarnThreshold))
	}
	if cfg.CriticalCancellationRate < 0 || cfg.CriticalCancellationRate > 1 {
		errors = append(errors, fmt.Sprintf("CriticalCancellationRate must be in [0,1], got: %f", cfg.CriticalCancellationRate))
	}
	if cfg.FairnessWindowDays <= 0 {
		errors = append(errors, fmt.Sprintf("FairnessWindowDays must be positive, got: %d", cfg.FairnessWindowDays))
	}
	if cfg.CheckpointValidMinutes <= 0 {
		errors = append(errors, fmt.Sprintf("CheckpointValidMinutes must be positive, got: %d", cfg.CheckpointValidMinutes))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"collaborator_timeout", cfg.CollaboratorTimeout,
		"booking_grace_period", cfg.BookingGracePeriod,
		"vehicle_lock_ttl", cfg.VehicleLockTTL,
		"suggestion_horizon_days", cfg.SuggestionHorizonDays,
		"max_suggestions", cfg.MaxSuggestions,
		"fairness_gate_bookings", cfg.FairnessGateBookings,
		"fairness_weight", cfg.FairnessWeight,
		"priority_threshold", cfg.PriorityThreshold,
		"imbalance_warn_threshold", cfg.ImbalanceWarnThreshold,
		"critical_cancellation_rate", cfg.CriticalCancellationRate,
		"fairness_window_days", cfg.FairnessWindowDays,
		"count_in_use_reservations", cfg.CountInUseReservations,
		"checkpoint_valid_minutes", cfg.CheckpointValidMinutes,
		"checkpoint_sweep_interval", cfg.CheckpointSweepEvery,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
