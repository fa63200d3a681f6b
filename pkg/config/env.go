package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "ACARI"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv             = "ACARI_APP_ENV"
	EnvPort               = "ACARI_APP_PORT"
	EnvLogLevel           = "ACARI_LOG_LEVEL"
	EnvDBDSN              = "ACARI_DB_DSN"
	EnvDBHost             = "ACARI_DB_HOST"
	EnvDBUser             = "ACARI_DB_USER"
	EnvDBName             = "ACARI_DB_NAME"
	EnvDBPassword         = "ACARI_DB_PASSWORD"
	EnvRedisURL           = "ACARI_REDIS_URL"
	EnvJWTSecret          = "ACARI_JWT_SECRET"
	EnvJWTIssuer          = "ACARI_JWT_ISSUER"
	EnvJWTExpMins         = "ACARI_JWT_EXPIRATION_MINUTES"
	EnvCronSchedule       = "ACARI_CRON_SCHEDULE"
	EnvBillingGracePeriod = "ACARI_BILLING_GRACE_PERIOD"
	EnvPublicBackendURL   = "ACARI_PUBLIC_BACKEND_URL"
	EnvPublicKey          = "ACARI_PUBLIC_KEY"
	EnvCORSOrigins        = "ACARI_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
