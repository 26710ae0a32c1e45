package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "NEUROCARE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "NEUROCARE_APP_ENV"
	EnvPort               = "NEUROCARE_APP_PORT"
	EnvLogLevel           = "NEUROCARE_LOG_LEVEL"
	EnvStorageDriver      = "NEUROCARE_STORAGE_DRIVER"
	EnvStorageNamespace   = "NEUROCARE_STORAGE_NAMESPACE"
	EnvRedisURL           = "NEUROCARE_REDIS_URL"
	EnvRedisAddr          = "NEUROCARE_REDIS_ADDR"
	EnvDBDSN              = "NEUROCARE_DB_DSN"
	EnvDBHost             = "NEUROCARE_DB_HOST"
	EnvDBUser             = "NEUROCARE_DB_USER"
	EnvDBName             = "NEUROCARE_DB_NAME"
	EnvSQLitePath         = "NEUROCARE_SQLITE_PATH"
	EnvTransitDuration    = "NEUROCARE_ORDERS_TRANSIT_DURATION"
	EnvPaymentDelay       = "NEUROCARE_ORDERS_PAYMENT_DELAY"
	EnvConfirmationDelay  = "NEUROCARE_ORDERS_CONFIRMATION_DELAY"
	EnvBackfillOnCheckout = "NEUROCARE_ORDERS_BACKFILL_ON_CHECKOUT"
	EnvCorruptionPolicy   = "NEUROCARE_ORDERS_CORRUPTION_POLICY"
	EnvSweepInterval      = "NEUROCARE_SWEEP_INTERVAL"
	EnvCORSOrigins        = "NEUROCARE_CORS_ORIGINS"
	EnvIdempotencyTTL     = "NEUROCARE_IDEMPOTENCY_TTL"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Corruption policies for a persisted order list.
const (
	CorruptionStrict  = "strict"
	CorruptionSalvage = "salvage"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App     AppConfig
	Storage StorageConfig
	Redis   RedisConfig
	DB      DBConfig
	Orders  OrdersConfig
	Sweep   SweepConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StorageRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s or %s is required for the redis storage driver", EnvRedisURL, EnvRedisAddr)
		}
	case StoragePostgres:
		if err := c.DB.ensureDSN(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, c.Storage.Driver)
	}
	switch c.Orders.CorruptionPolicy {
	case CorruptionStrict, CorruptionSalvage:
	default:
		return fmt.Errorf("unsupported %s %q", EnvCorruptionPolicy, c.Orders.CorruptionPolicy)
	}
	if c.Orders.TransitDuration <= 0 {
		return fmt.Errorf("%s must be positive", EnvTransitDuration)
	}
	if c.App.IdempotencyTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvIdempotencyTTL)
	}
	if c.Orders.PaymentDelay < 0 || c.Orders.ConfirmationDelay < 0 {
		return fmt.Errorf("checkout delays must not be negative")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"NEUROCARE_APP_ENV" default:"dev"`
	Port         string `envconfig:"NEUROCARE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"NEUROCARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NEUROCARE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"NEUROCARE_AUTO_MIGRATE" default:"false"`
	// CORSOrigins is a comma-separated list of browser origins allowed to call the API.
	CORSOrigins []string `envconfig:"NEUROCARE_CORS_ORIGINS" default:"http://localhost:3000"`
	// IdempotencyTTL is how long a checkout or cancel response is replayed for its key.
	IdempotencyTTL time.Duration `envconfig:"NEUROCARE_IDEMPOTENCY_TTL" default:"168h"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StorageConfig struct {
	Driver     string `envconfig:"NEUROCARE_STORAGE_DRIVER" default:"memory"`
	Namespace  string `envconfig:"NEUROCARE_STORAGE_NAMESPACE" default:"neurocare"`
	SQLitePath string `envconfig:"NEUROCARE_SQLITE_PATH" default:"neurocare.db"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NEUROCARE_REDIS_URL"`
	Address      string        `envconfig:"NEUROCARE_REDIS_ADDR"`
	Password     string        `envconfig:"NEUROCARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"NEUROCARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NEUROCARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NEUROCARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NEUROCARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NEUROCARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NEUROCARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	DSN string `envconfig:"NEUROCARE_DB_DSN"`

	LegacyHost     string `envconfig:"NEUROCARE_DB_HOST"`
	LegacyPort     int    `envconfig:"NEUROCARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NEUROCARE_DB_USER"`
	LegacyPassword string `envconfig:"NEUROCARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"NEUROCARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"NEUROCARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NEUROCARE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"NEUROCARE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"NEUROCARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NEUROCARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// OrdersConfig tunes the simulated fulfilment.
type OrdersConfig struct {
	TransitDuration    time.Duration `envconfig:"NEUROCARE_ORDERS_TRANSIT_DURATION" default:"12s"`
	PaymentDelay       time.Duration `envconfig:"NEUROCARE_ORDERS_PAYMENT_DELAY" default:"3s"`
	ConfirmationDelay  time.Duration `envconfig:"NEUROCARE_ORDERS_CONFIRMATION_DELAY" default:"2s"`
	BackfillOnCheckout bool          `envconfig:"NEUROCARE_ORDERS_BACKFILL_ON_CHECKOUT" default:"true"`
	CorruptionPolicy   string        `envconfig:"NEUROCARE_ORDERS_CORRUPTION_POLICY" default:"strict"`
	NotificationLimit  int           `envconfig:"NEUROCARE_NOTIFICATION_LIMIT" default:"50"`
}

type SweepConfig struct {
	Interval time.Duration `envconfig:"NEUROCARE_SWEEP_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"NEUROCARE_SWEEP_LOCK_TTL" default:"5m"`
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
