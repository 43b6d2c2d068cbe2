package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is applied by envconfig to every binding below.
const EnvPrefix = "MADAPARTS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags (tests, error messages).
const (
	EnvAppEnv = "MADAPARTS_APP_ENV"
	EnvDBDSN  = "MADAPARTS_DB_DSN"
	EnvDBHost = "MADAPARTS_DB_HOST"
	EnvDBUser = "MADAPARTS_DB_USER"
	EnvDBName = "MADAPARTS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Sales        SalesConfig
	Imports      ImportsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MADAPARTS_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"MADAPARTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MADAPARTS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MADAPARTS_DB_DSN"`
	Driver string `envconfig:"MADAPARTS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MADAPARTS_DB_HOST"`
	LegacyPort     int    `envconfig:"MADAPARTS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MADAPARTS_DB_USER"`
	LegacyPassword string `envconfig:"MADAPARTS_DB_PASSWORD"`
	LegacyName     string `envconfig:"MADAPARTS_DB_NAME"`
	LegacySSLMode  string `envconfig:"MADAPARTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MADAPARTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MADAPARTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MADAPARTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MADAPARTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// SalesConfig tunes the fulfillment and billing engines.
type SalesConfig struct {
	// PaymentEpsilon is the tolerance used when comparing paid vs due amounts.
	// Discount and payment arithmetic on floats leaves residual rounding error,
	// so "fully paid" is |reste| < epsilon rather than == 0.
	PaymentEpsilon float64 `envconfig:"MADAPARTS_SALES_PAYMENT_EPSILON" default:"0.01"`
}

// ImportsConfig tunes supplier import receiving.
type ImportsConfig struct {
	// DefaultFreightCoefficient multiplies the supplier purchase price into a
	// landed unit price when the import document carries no coefficient.
	DefaultFreightCoefficient float64 `envconfig:"MADAPARTS_IMPORTS_FREIGHT_COEFFICIENT" default:"1.0"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MADAPARTS_AUTO_MIGRATE" default:"false"`
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
