package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SOKO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SOKO_DB_DSN"
	EnvDBHost = "SOKO_DB_HOST"
	EnvDBUser = "SOKO_DB_USER"
	EnvDBName = "SOKO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Paystack   PaystackConfig
	Delivery   DeliveryConfig
	Settlement SettlementConfig
	Flags      FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SOKO_APP_ENV" required:"true"`
	Port         string `envconfig:"SOKO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOKO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOKO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SOKO_DB_DSN"`
	Driver string `envconfig:"SOKO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SOKO_DB_HOST"`
	LegacyPort     int    `envconfig:"SOKO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SOKO_DB_USER"`
	LegacyPassword string `envconfig:"SOKO_DB_PASSWORD"`
	LegacyName     string `envconfig:"SOKO_DB_NAME"`
	LegacySSLMode  string `envconfig:"SOKO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOKO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOKO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOKO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOKO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOKO_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"SOKO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOKO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOKO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOKO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOKO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PaystackConfig struct {
	SecretKey      string        `envconfig:"SOKO_PAYSTACK_SECRET_KEY"`
	BaseURL        string        `envconfig:"SOKO_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	RequestTimeout time.Duration `envconfig:"SOKO_PAYSTACK_TIMEOUT" default:"15s"`
	CallbackURL    string        `envconfig:"SOKO_PAYSTACK_CALLBACK_URL"`
}

// DeliveryConfig covers the delivery provider integration. WebhookToken is
// the shared secret the provider sends on status callbacks.
type DeliveryConfig struct {
	WebhookToken string `envconfig:"SOKO_DELIVERY_WEBHOOK_TOKEN"`
}

// SettlementConfig carries the money rules the escrow ledger applies.
// PlatformFeeBps is the marketplace cut in basis points (1000 = 10%).
// AutoReleaseWindow is how long a delivered order waits for buyer
// confirmation before escrow is released anyway.
type SettlementConfig struct {
	PlatformFeeBps        int           `envconfig:"SOKO_PLATFORM_FEE_BPS" default:"1000"`
	WebhookIdempotencyTTL time.Duration `envconfig:"SOKO_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
	AutoReleaseWindow     time.Duration `envconfig:"SOKO_AUTO_RELEASE_WINDOW" default:"72h"`
	AutoReleaseBatchSize  int           `envconfig:"SOKO_AUTO_RELEASE_BATCH_SIZE" default:"100"`
	AutoReleaseInterval   time.Duration `envconfig:"SOKO_AUTO_RELEASE_INTERVAL" default:"15m"`
}

func (s SettlementConfig) validate() error {
	if s.PlatformFeeBps < 0 || s.PlatformFeeBps > 10000 {
		return fmt.Errorf("platform fee bps must be within [0, 10000], got %d", s.PlatformFeeBps)
	}
	if s.AutoReleaseWindow <= 0 {
		return fmt.Errorf("auto release window must be positive, got %s", s.AutoReleaseWindow)
	}
	if s.AutoReleaseBatchSize <= 0 {
		return fmt.Errorf("auto release batch size must be positive, got %d", s.AutoReleaseBatchSize)
	}
	if s.AutoReleaseInterval <= 0 {
		return fmt.Errorf("auto release interval must be positive, got %s", s.AutoReleaseInterval)
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SOKO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SOKO_AUTO_MIGRATE" default:"false"`
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
