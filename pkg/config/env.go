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

	EnvWhatsAppAppSecret = "WHATSAPP_APP_SECRET"
	EnvSlotTokenKey      = "SLOT_TOKEN_KEY"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvMinLeadTimeDays  = "MIN_LEAD_TIME_DAYS"
	EnvSlotBufferMin    = "SLOT_BUFFER_MIN"
	EnvSlotStepMin      = "SLOT_STEP_MIN"
	EnvBusinessTimeZone = "BUSINESS_TIME_ZONE"

	EnvSessionTTL        = "SESSION_TTL"
	EnvLockWaitTimeout   = "LOCK_WAIT_TIMEOUT"
	EnvLockRetryInterval = "LOCK_RETRY_INTERVAL"

	EnvCalendarBaseURL        = "CALENDAR_BASE_URL"
	EnvCalendarAPIKey         = "CALENDAR_API_KEY"
	EnvCalendarRequestTimeout = "CALENDAR_REQUEST_TIMEOUT"
)
