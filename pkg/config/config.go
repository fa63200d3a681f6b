package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cron          CronConfig
	Reminders     RemindersConfig
	Billing       BillingConfig
	Signup        SignupConfig
	Public        PublicConfig
	GenAI         GenAIConfig
	Domains       DomainsConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Sendgrid      SendgridConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.Billing.GracePeriod <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvBillingGracePeriod)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ACARI_APP_ENV" required:"true"`
	Port         string `envconfig:"ACARI_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ACARI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ACARI_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"ACARI_CORS_ORIGINS" default:"http://localhost:5173"`
	// MetricsAddr serves /metrics apart from the public API; empty disables it.
	MetricsAddr string `envconfig:"ACARI_APP_METRICS_ADDR" default:":9092"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	out := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"ACARI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ACARI_DB_DSN"`
	Driver string `envconfig:"ACARI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ACARI_DB_HOST"`
	LegacyPort     int    `envconfig:"ACARI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ACARI_DB_USER"`
	LegacyPassword string `envconfig:"ACARI_DB_PASSWORD"`
	LegacyName     string `envconfig:"ACARI_DB_NAME"`
	LegacySSLMode  string `envconfig:"ACARI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ACARI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ACARI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ACARI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ACARI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"ACARI_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ACARI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ACARI_REDIS_ADDR"`
	Password     string        `envconfig:"ACARI_REDIS_PASSWORD"`
	DB           int           `envconfig:"ACARI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ACARI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ACARI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ACARI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ACARI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ACARI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"ACARI_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"ACARI_JWT_ISSUER" default:"acari"`
	ExpirationMinutes      int    `envconfig:"ACARI_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"ACARI_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ACARI_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ACARI_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ACARI_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ACARI_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ACARI_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ACARI_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ACARI_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ACARI_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ACARI_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"ACARI_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ACARI_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ACARI_AUTO_MIGRATE" default:"false"`
}

// CronConfig controls the cron-worker schedule. Schedule accepts any
// robfig/cron standard expression or descriptor ("@every 1h", "0 9 * * *").
type CronConfig struct {
	Schedule          string        `envconfig:"ACARI_CRON_SCHEDULE" default:"@every 1h"`
	LockTTL           time.Duration `envconfig:"ACARI_CRON_LOCK_TTL" default:"55m"`
	OutboxRetention   time.Duration `envconfig:"ACARI_CRON_OUTBOX_RETENTION" default:"720h"`
	DLQRetention      time.Duration `envconfig:"ACARI_CRON_DLQ_RETENTION" default:"2160h"`
	GraceExpiryCancel bool          `envconfig:"ACARI_CRON_GRACE_EXPIRY_CANCEL" default:"true"`
	// MetricsAddr serves /metrics from the worker; empty disables it.
	MetricsAddr string `envconfig:"ACARI_CRON_METRICS_ADDR" default:":9090"`
}

type RemindersConfig struct {
	FromName    string `envconfig:"ACARI_REMINDERS_FROM_NAME" default:"Acari Billing"`
	BillingURL  string `envconfig:"ACARI_REMINDERS_BILLING_URL" default:"https://app.acari.io/dashboard/billing"`
	SupportMail string `envconfig:"ACARI_REMINDERS_SUPPORT_EMAIL" default:"support@acari.io"`
}

type BillingConfig struct {
	GracePeriod time.Duration `envconfig:"ACARI_BILLING_GRACE_PERIOD" default:"168h"`
}

type SignupConfig struct {
	RequireCode bool          `envconfig:"ACARI_SIGNUP_REQUIRE_CODE" default:"false"`
	CodeTTL     time.Duration `envconfig:"ACARI_SIGNUP_CODE_TTL" default:"10m"`
	Cooldown    time.Duration `envconfig:"ACARI_SIGNUP_CODE_COOLDOWN" default:"60s"`
	AdminEmail  string        `envconfig:"ACARI_ADMIN_NOTIFICATION_EMAIL"`
	AppURL      string        `envconfig:"ACARI_APP_URL" default:"https://app.acari.io"`
}

// PublicConfig is served verbatim to the browser client at /config.json.
type PublicConfig struct {
	BackendURL string `envconfig:"ACARI_PUBLIC_BACKEND_URL" default:"http://localhost:8080"`
	PublicKey  string `envconfig:"ACARI_PUBLIC_KEY"`
}

type GenAIConfig struct {
	APIKey     string        `envconfig:"ACARI_GENAI_API_KEY"`
	TextModel  string        `envconfig:"ACARI_GENAI_TEXT_MODEL" default:"gemini-2.5-flash"`
	ImageModel string        `envconfig:"ACARI_GENAI_IMAGE_MODEL" default:"imagen-4.0-generate-001"`
	Timeout    time.Duration `envconfig:"ACARI_GENAI_TIMEOUT" default:"90s"`
	// Per-user cap on generator calls.
	RateLimit  int           `envconfig:"ACARI_GENAI_RATE_LIMIT" default:"10"`
	RateWindow time.Duration `envconfig:"ACARI_GENAI_RATE_WINDOW" default:"1m"`
}

type DomainsConfig struct {
	BaseURL string        `envconfig:"ACARI_DOMAINS_BASE_URL"`
	APIKey  string        `envconfig:"ACARI_DOMAINS_API_KEY"`
	Timeout time.Duration `envconfig:"ACARI_DOMAINS_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ACARI_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ACARI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ACARI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"ACARI_GCS_BUCKET_NAME"`
	PublicBaseURL string `envconfig:"ACARI_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type PubSubConfig struct {
	BillingTopic string `envconfig:"ACARI_PUBSUB_BILLING_TOPIC" default:"acari-billing-events"`
	AssetsTopic  string `envconfig:"ACARI_PUBSUB_ASSETS_TOPIC" default:"acari-asset-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ACARI_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ACARI_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ACARI_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr serves /metrics from the publisher; empty disables it.
	MetricsAddr string `envconfig:"ACARI_OUTBOX_METRICS_ADDR" default:":9091"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ACARI_STRIPE_API_KEY"`
	Secret string `envconfig:"ACARI_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"ACARI_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"ACARI_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"ACARI_SENDGRID_FROM_EMAIL" default:"no-reply@acari.io"`
	FromName    string `envconfig:"ACARI_SENDGRID_FROM_NAME" default:"Acari"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
