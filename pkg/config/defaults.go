package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "turnera"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultMinLeadTimeDays  = 1
	DefaultSlotBufferMin    = 10
	DefaultSlotStepMin      = 15
	DefaultBusinessTimeZone = "America/Argentina/Buenos_Aires"

	DefaultSessionTTL        = 30 * time.Minute
	DefaultLockWaitTimeout   = 3 * time.Second
	DefaultLockRetryInterval = 100 * time.Millisecond

	DefaultCalendarRequestTimeout = 10 * time.Second

	DefaultPaginationLimit = 100
)
