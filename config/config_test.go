package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "points_ledger", cfg.Database.DBName)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)

	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "points-ledger", cfg.JWT.Issuer)

	assert.Equal(t, "postgres", cfg.Ledger.Driver)
	assert.Equal(t, int64(10_000_000), cfg.Ledger.MasterSupply)
	assert.Equal(t, int64(100), cfg.Ledger.InitialUserPoints)
	assert.Equal(t, int64(1_000_000), cfg.Ledger.MaxTransfer)
	assert.Equal(t, 1000, cfg.Ledger.HistoryLimit)

	assert.Equal(t, "redis", cfg.OTP.Store)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 6, cfg.OTP.Length)

	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, int64(5), cfg.RateLimit.OTPPerMinute)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	content := []byte(`
server:
  port: 9090
  mode: "release"
database:
  host: "db.example.com"
  dbname: "ledger_test"
jwt:
  secret: "my-jwt-secret"
  expiry: "12h"
ledger:
  driver: "memory"
  master_supply: 5000
  initial_user_points: 10
  max_transfer: 250
  history_limit: 50
otp:
  store: "memory"
  ttl: "90s"
admin:
  username: "root"
  password: "changeme"
ratelimit:
  otp_per_minute: 2
log:
  level: "debug"
  pretty: true
`)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, "ledger_test", cfg.Database.DBName)
	assert.Equal(t, "my-jwt-secret", cfg.JWT.Secret)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiry)

	assert.Equal(t, "memory", cfg.Ledger.Driver)
	assert.Equal(t, int64(5000), cfg.Ledger.MasterSupply)
	assert.Equal(t, int64(10), cfg.Ledger.InitialUserPoints)
	assert.Equal(t, int64(250), cfg.Ledger.MaxTransfer)
	assert.Equal(t, 50, cfg.Ledger.HistoryLimit)

	assert.Equal(t, "memory", cfg.OTP.Store)
	assert.Equal(t, 90*time.Second, cfg.OTP.TTL)
	assert.Equal(t, "root", cfg.Admin.Username)
	assert.Equal(t, "changeme", cfg.Admin.Password)
	assert.Equal(t, int64(2), cfg.RateLimit.OTPPerMinute)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PTS_SERVER_PORT", "3000")
	t.Setenv("PTS_LEDGER_DRIVER", "memory")
	t.Setenv("PTS_LEDGER_MAX_TRANSFER", "42")
	t.Setenv("PTS_JWT_SECRET", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Ledger.Driver)
	assert.Equal(t, int64(42), cfg.Ledger.MaxTransfer)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Mode: "release"},
			JWT:    JWTConfig{Secret: "s"},
			Ledger: LedgerConfig{Driver: "memory", MasterSupply: 100, MaxTransfer: 10, InitialUserPoints: 1},
			OTP:    OTPConfig{Store: "memory", Length: 6},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Ledger.Driver = "sqlite" }, "unknown ledger driver"},
		{"unknown otp store", func(c *Config) { c.OTP.Store = "file" }, "unknown otp store"},
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, "jwt.secret"},
		{"zero supply", func(c *Config) { c.Ledger.MasterSupply = 0 }, "master_supply"},
		{"zero max transfer", func(c *Config) { c.Ledger.MaxTransfer = 0 }, "max_transfer"},
		{"negative initial points", func(c *Config) { c.Ledger.InitialUserPoints = -1 }, "initial_user_points"},
		{"unknown mode", func(c *Config) { c.Server.Mode = "prod" }, "server mode"},
		{"short otp", func(c *Config) { c.OTP.Length = 3 }, "otp.length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	dbCfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ledger",
		Password: "pw",
		DBName:   "points",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://ledger:pw@localhost:5432/points?sslmode=disable", dbCfg.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "redis.local:6380", RedisConfig{Host: "redis.local", Port: 6380}.Addr())
}
