package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	OTP       OTPConfig       `mapstructure:"otp"`
	Admin     AdminConfig     `mapstructure:"admin"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
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
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
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

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LedgerConfig controls storage selection and the points policy.
type LedgerConfig struct {
	Driver            string `mapstructure:"driver"` // postgres, memory
	MasterSupply      int64  `mapstructure:"master_supply"`
	InitialUserPoints int64  `mapstructure:"initial_user_points"`
	MaxTransfer       int64  `mapstructure:"max_transfer"`
	HistoryLimit      int    `mapstructure:"history_limit"`
}

type OTPConfig struct {
	Store  string        `mapstructure:"store"` // redis, memory
	TTL    time.Duration `mapstructure:"ttl"`
	Length int           `mapstructure:"length"`
}

// AdminConfig describes the administrator ensured at startup. An empty
// username disables the bootstrap.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	FullName string `mapstructure:"full_name"`
	Email    string `mapstructure:"email"`
}

type RateLimitConfig struct {
	OTPPerMinute int64 `mapstructure:"otp_per_minute"`
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Ledger.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	switch c.OTP.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown otp store %q", c.OTP.Store)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Ledger.MasterSupply <= 0 {
		return fmt.Errorf("ledger.master_supply must be positive")
	}
	if c.Ledger.MaxTransfer <= 0 {
		return fmt.Errorf("ledger.max_transfer must be positive")
	}
	if c.Ledger.InitialUserPoints < 0 {
		return fmt.Errorf("ledger.initial_user_points must not be negative")
	}
	if c.OTP.Length < 4 || c.OTP.Length > 9 {
		return fmt.Errorf("otp.length must be between 4 and 9")
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PTS_.
// Nested keys use underscore: PTS_DATABASE_HOST, PTS_LEDGER_DRIVER, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "points_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "points-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.driver", "postgres")
	v.SetDefault("ledger.master_supply", 10_000_000)
	v.SetDefault("ledger.initial_user_points", 100)
	v.SetDefault("ledger.max_transfer", 1_000_000)
	v.SetDefault("ledger.history_limit", 1000)
	v.SetDefault("otp.store", "redis")
	v.SetDefault("otp.ttl", "5m")
	v.SetDefault("otp.length", 6)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.full_name", "Administrator")
	v.SetDefault("admin.email", "")
	v.SetDefault("ratelimit.otp_per_minute", 5)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// PTS_LEDGER_DRIVER -> ledger.driver
	v.SetEnvPrefix("PTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
