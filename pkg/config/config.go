package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Gateway      GatewayConfig
	Settlement   SettlementConfig
	Pricing      PricingConfig
	Cron         CronConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Outbox       OutboxConfig
}

// Load reads every ARENA_* variable and reports all invalid values at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}
	check(c.Settlement.MaxAttempts >= 1, "%s must be at least 1", EnvSettleMax)
	check(c.Settlement.RetryDelay >= 0, "%s must not be negative", EnvSettleDelay)
	check(c.Pricing.GSTPercent >= 0, "%s must not be negative", EnvGSTPercent)
	check(c.Cron.LockTTL > c.Cron.JobTimeout, "%s must exceed %s", EnvCronLockTTL, EnvCronJobTimeout)
	check(c.Outbox.Stream != "", "%s must not be empty", EnvOutboxStream)
	check(c.Outbox.BatchSize > 0, "%s must be positive", EnvOutboxBatch)
	check(c.Outbox.MaxAttempts > 0, "%s must be positive", EnvOutboxAttempts)
	return err
}

type AppConfig struct {
	Env          string `envconfig:"ARENA_APP_ENV" required:"true"`
	Port         string `envconfig:"ARENA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ARENA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ARENA_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is where the workers expose /metrics. Empty disables it.
	MetricsAddr string `envconfig:"ARENA_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ARENA_DB_DSN"`
	Driver string `envconfig:"ARENA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ARENA_DB_HOST"`
	LegacyPort     int    `envconfig:"ARENA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ARENA_DB_USER"`
	LegacyPassword string `envconfig:"ARENA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ARENA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ARENA_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"ARENA_SQLITE_PATH" default:"file:arena.db?_busy_timeout=5000"`

	MaxOpenConns    int           `envconfig:"ARENA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ARENA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ARENA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ARENA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"ARENA_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ARENA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ARENA_REDIS_ADDR"`
	Password     string        `envconfig:"ARENA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ARENA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ARENA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ARENA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ARENA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ARENA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ARENA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ARENA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ARENA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ARENA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ARENA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ARENA_AUTO_MIGRATE" default:"false"`
}

// GatewayConfig holds the payment gateway credentials. Missing credentials do
// not fail Load; order creation reports them instead.
type GatewayConfig struct {
	KeyID     string        `envconfig:"ARENA_GATEWAY_KEY_ID"`
	KeySecret string        `envconfig:"ARENA_GATEWAY_KEY_SECRET"`
	BaseURL   string        `envconfig:"ARENA_GATEWAY_BASE_URL" default:"https://api.razorpay.com"`
	Currency  string        `envconfig:"ARENA_GATEWAY_CURRENCY" default:"INR"`
	Timeout   time.Duration `envconfig:"ARENA_GATEWAY_TIMEOUT" default:"10s"`
}

type SettlementConfig struct {
	MaxAttempts int           `envconfig:"ARENA_SETTLEMENT_MAX_ATTEMPTS" default:"3"`
	RetryDelay  time.Duration `envconfig:"ARENA_SETTLEMENT_RETRY_DELAY" default:"1s"`
}

type PricingConfig struct {
	GSTPercent int64 `envconfig:"ARENA_PRICING_GST_PERCENT" default:"18"`
}

// GSTMultiplier returns 1 + GST as a decimal factor.
func (p PricingConfig) GSTMultiplier() decimal.Decimal {
	return decimal.NewFromInt(100 + p.GSTPercent).Div(decimal.NewFromInt(100))
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"ARENA_CRON_INTERVAL" default:"15m"`
	ReservationStaleAt time.Duration `envconfig:"ARENA_RESERVATION_STALE_AFTER" default:"30m"`
	JobTimeout         time.Duration `envconfig:"ARENA_CRON_JOB_TIMEOUT" default:"5m"`
	LockTTL            time.Duration `envconfig:"ARENA_CRON_LOCK_TTL" default:"10m"`
}

// OutboxConfig drives cmd/outbox-relay.
type OutboxConfig struct {
	Stream       string        `envconfig:"ARENA_OUTBOX_STREAM" default:"reservations"`
	StreamMaxLen int64         `envconfig:"ARENA_OUTBOX_STREAM_MAXLEN" default:"100000"`
	BatchSize    int           `envconfig:"ARENA_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"ARENA_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"ARENA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// Retention bounds how long published rows are kept before the cron
	// worker prunes them in batches of PruneBatch.
	Retention  time.Duration `envconfig:"ARENA_OUTBOX_RETENTION" default:"720h"`
	PruneBatch int           `envconfig:"ARENA_OUTBOX_PRUNE_BATCH" default:"500"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"ARENA_IDEMPOTENCY_TTL" default:"24h"`
}

// RateLimitConfig throttles payment order and verify calls per user.
type RateLimitConfig struct {
	PaymentWindow time.Duration `envconfig:"ARENA_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentLimit  int           `envconfig:"ARENA_RATE_LIMIT_PAYMENT_LIMIT" default:"20"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ARENA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
