package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Identity IdentityConfig `mapstructure:"identity"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// GatewayConfig configures the hosted-checkout payment gateway.
type GatewayConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	PublicKey string        `mapstructure:"public_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// AllowStub returns a fake checkout URL instead of calling the gateway.
	AllowStub bool `mapstructure:"allow_stub"`
	// AllowUnsignedWebhooks accepts webhook bodies without a signature when no
	// secret key is configured. Development only.
	AllowUnsignedWebhooks bool `mapstructure:"allow_unsigned_webhooks"`
}

type IdentityConfig struct {
	GoogleClientID    string `mapstructure:"google_client_id"`
	RedirectURI       string `mapstructure:"redirect_uri"`
	TokenInfoURL      string `mapstructure:"tokeninfo_url"`
	AllowInsecureMock bool   `mapstructure:"allow_insecure_mock"`
}

type LedgerConfig struct {
	MaxActiveKeys       int           `mapstructure:"max_active_keys"`
	ReferenceRetries    int           `mapstructure:"reference_retries"`
	WalletNumberRetries int           `mapstructure:"wallet_number_retries"`
	PendingDepositTTL   time.Duration `mapstructure:"pending_deposit_ttl"`
	SweepSchedule       string        `mapstructure:"sweep_schedule"` // cron spec, empty disables
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WALLET_.
// Nested keys use underscore: WALLET_DATABASE_HOST, WALLET_GATEWAY_SECRET_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "168h")
	v.SetDefault("jwt.issuer", "custodial-wallet")
	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("gateway.public_key", "")
	v.SetDefault("gateway.base_url", "https://api.paystack.co")
	v.SetDefault("gateway.timeout", "15s")
	v.SetDefault("gateway.allow_stub", false)
	v.SetDefault("gateway.allow_unsigned_webhooks", false)
	v.SetDefault("identity.google_client_id", "")
	v.SetDefault("identity.redirect_uri", "")
	v.SetDefault("identity.tokeninfo_url", "https://oauth2.googleapis.com/tokeninfo")
	v.SetDefault("identity.allow_insecure_mock", false)
	v.SetDefault("ledger.max_active_keys", 5)
	v.SetDefault("ledger.reference_retries", 5)
	v.SetDefault("ledger.wallet_number_retries", 10)
	v.SetDefault("ledger.pending_deposit_ttl", "24h")
	v.SetDefault("ledger.sweep_schedule", "@every 10m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("metrics.enabled", true)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// WALLET_GATEWAY_SECRET_KEY -> gateway.secret_key
	v.SetEnvPrefix("WALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations that would run the ledger unsafely.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Ledger.MaxActiveKeys <= 0 {
		return fmt.Errorf("ledger.max_active_keys must be positive")
	}
	if c.Ledger.ReferenceRetries <= 0 || c.Ledger.WalletNumberRetries <= 0 {
		return fmt.Errorf("ledger retry limits must be positive")
	}
	if c.Gateway.SecretKey != "" && c.Gateway.AllowUnsignedWebhooks {
		return fmt.Errorf("gateway.allow_unsigned_webhooks cannot be combined with a gateway secret key")
	}
	return nil
}
