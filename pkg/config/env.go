package config

const (
	EnvPrefix = "ARENA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "ARENA_APP_ENV"
	EnvPort          = "ARENA_APP_PORT"
	EnvDBDSN         = "ARENA_DB_DSN"
	EnvDBHost        = "ARENA_DB_HOST"
	EnvDBUser        = "ARENA_DB_USER"
	EnvDBName        = "ARENA_DB_NAME"
	EnvRedisURL      = "ARENA_REDIS_URL"
	EnvJWTSecret     = "ARENA_JWT_SECRET"
	EnvJWTIssuer     = "ARENA_JWT_ISSUER"
	EnvJWTExpMins    = "ARENA_JWT_EXPIRATION_MINUTES"
	EnvGatewayKeyID  = "ARENA_GATEWAY_KEY_ID"
	EnvGatewaySecret = "ARENA_GATEWAY_KEY_SECRET"
	EnvSettleMax     = "ARENA_SETTLEMENT_MAX_ATTEMPTS"
	EnvSettleDelay   = "ARENA_SETTLEMENT_RETRY_DELAY"
	EnvGSTPercent    = "ARENA_PRICING_GST_PERCENT"

	EnvCronLockTTL    = "ARENA_CRON_LOCK_TTL"
	EnvCronJobTimeout = "ARENA_CRON_JOB_TIMEOUT"
	EnvOutboxStream   = "ARENA_OUTBOX_STREAM"
	EnvOutboxBatch    = "ARENA_OUTBOX_BATCH_SIZE"
	EnvOutboxAttempts = "ARENA_OUTBOX_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
