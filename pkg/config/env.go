package config

// EnvPrefix is empty: every field carries its fully qualified LX_* name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageModeDatabase = "database"
	StorageModeMemory   = "memory"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	EnvAppEnv          = "LX_APP_ENV"
	EnvPort            = "LX_APP_PORT"
	EnvLogLevel        = "LX_LOG_LEVEL"
	EnvStorageMode     = "LX_STORAGE_MODE"
	EnvAutoMigrate     = "LX_AUTO_MIGRATE"
	EnvDBDriver        = "LX_DB_DRIVER"
	EnvDBDSN           = "LX_DB_DSN"
	EnvRedisURL        = "LX_REDIS_URL"
	EnvSessionTTL      = "LX_SESSION_TTL"
	EnvAssistantBase   = "LX_ASSISTANT_API_BASE"
	EnvAssistantTO     = "LX_ASSISTANT_TIMEOUT"
	EnvCheckoutLatency = "LX_CHECKOUT_LATENCY"
	EnvLoanPeriodDays  = "LX_LOAN_PERIOD_DAYS"
	EnvTimezone        = "LX_TIMEZONE"
	EnvCORSOrigins     = "LX_CORS_ORIGINS"
	EnvSessionIdle     = "LX_SESSION_IDLE"
)
