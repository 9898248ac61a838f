package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Storage   StorageConfig
	DB        DBConfig
	Redis     RedisConfig
	Assistant AssistantConfig
	Checkout  CheckoutConfig
	Loans     LoansConfig
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

type AppConfig struct {
	Env          string `envconfig:"LX_APP_ENV" required:"true"`
	Port         string `envconfig:"LX_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LX_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LX_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LX_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"LX_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StorageConfig struct {
	Mode        string `envconfig:"LX_STORAGE_MODE" default:"database"`
	AutoMigrate bool   `envconfig:"LX_AUTO_MIGRATE" default:"true"`

	// SessionIdle bounds how long an unused chat session stays cached in process.
	SessionIdle time.Duration `envconfig:"LX_SESSION_IDLE" default:"30m"`
}

// InMemory reports whether slots live only in process memory.
func (s StorageConfig) InMemory() bool {
	return strings.EqualFold(s.Mode, StorageModeMemory)
}

type DBConfig struct {
	Driver string `envconfig:"LX_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"LX_DB_DSN" default:"file:lx.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"LX_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"LX_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"LX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LX_REDIS_URL" default:"redis://localhost:6379/0"`
	Address      string        `envconfig:"LX_REDIS_ADDR"`
	Password     string        `envconfig:"LX_REDIS_PASSWORD"`
	DB           int           `envconfig:"LX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LX_REDIS_WRITE_TIMEOUT" default:"5s"`
	SessionTTL   time.Duration `envconfig:"LX_SESSION_TTL" default:"12h"`
}

type AssistantConfig struct {
	BaseURL string        `envconfig:"LX_ASSISTANT_API_BASE" default:"http://localhost:8000"`
	Timeout time.Duration `envconfig:"LX_ASSISTANT_TIMEOUT" default:"30s"`
}

type CheckoutConfig struct {
	Latency time.Duration `envconfig:"LX_CHECKOUT_LATENCY" default:"800ms"`
}

type LoansConfig struct {
	PeriodDays int    `envconfig:"LX_LOAN_PERIOD_DAYS" default:"14"`
	Timezone   string `envconfig:"LX_TIMEZONE" default:"America/Santiago"`
}

// Location resolves the timezone used for due-date arithmetic, falling back to UTC.
func (l LoansConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(l.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Storage.Mode) {
	case StorageModeDatabase, StorageModeMemory:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvStorageMode, StorageModeDatabase, StorageModeMemory)
	}

	switch strings.ToLower(c.DB.Driver) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDBDriver, DriverSQLite, DriverPostgres)
	}
	if !c.Storage.InMemory() && c.DB.DSN == "" {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvStorageMode, StorageModeDatabase)
	}

	u, err := url.Parse(c.Assistant.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url, got %q", EnvAssistantBase, c.Assistant.BaseURL)
	}
	c.Assistant.BaseURL = strings.TrimRight(c.Assistant.BaseURL, "/")

	if c.Loans.PeriodDays <= 0 {
		return fmt.Errorf("%s must be positive", EnvLoanPeriodDays)
	}
	if c.Checkout.Latency < 0 {
		return fmt.Errorf("%s must not be negative", EnvCheckoutLatency)
	}
	return nil
}
