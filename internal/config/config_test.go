package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGENDA_SESSION_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/agenda.db", cfg.Database.Path)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "agenda.sid", cfg.Session.CookieName)
	assert.False(t, cfg.Authz.StrictEventCreate)
	assert.False(t, cfg.Authz.StrictEventList)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "errors.log", cfg.Log.ErrorFile)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 10.0, cfg.RateLimit.LoginPerMinute)
	assert.Equal(t, 5, cfg.RateLimit.LoginBurst)
	assert.Equal(t, "@every 1h", cfg.Sweep.Schedule)
	assert.Empty(t, cfg.Archive.Bucket)
	assert.Empty(t, cfg.Server.TrustedProxies)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("AGENDA_SESSION_SECRET", testSecret)
	t.Setenv("AGENDA_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("AGENDA_SESSION_TTL", "30m")
	t.Setenv("AGENDA_SESSION_COOKIE_NAME", "sid")
	t.Setenv("AGENDA_AUTHZ_STRICT_EVENT_CREATE", "true")
	t.Setenv("AGENDA_LOG_FORMAT", "json")
	t.Setenv("AGENDA_DATABASE_DRIVER", "postgres")
	t.Setenv("AGENDA_DATABASE_URL", "postgres://agenda@localhost/agenda?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "sid", cfg.Session.CookieName)
	assert.True(t, cfg.Authz.StrictEventCreate)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("AGENDA_SESSION_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "session.secret")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Server.Addr = ":3000"
		c.Database.Driver = DriverSQLite
		c.Database.Path = "agenda.db"
		c.Session.Secret = testSecret
		c.Session.TTL = time.Hour
		c.Session.CookieName = "agenda.sid"
		c.Log.Level = "info"
		c.Log.Format = "text"
		c.Sweep.Schedule = "@every 1h"
		return c
	}
	require.NoError(t, valid().Validate())

	withProxies := valid()
	withProxies.Server.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12"}
	require.NoError(t, withProxies.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, "database.driver"},
		{"postgres without url", func(c *Config) { c.Database.Driver = DriverPostgres }, "database.url"},
		{"short secret", func(c *Config) { c.Session.Secret = "short" }, "session.secret"},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, "session.ttl"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad sweep", func(c *Config) { c.Sweep.Schedule = "sometimes" }, "sweep.schedule"},
		{"bad archive schedule", func(c *Config) {
			c.Archive.Bucket = "logs"
			c.Archive.Schedule = "never"
		}, "archive.schedule"},
		{"negative burst", func(c *Config) { c.RateLimit.LoginBurst = -1 }, "ratelimit"},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "gateway"} }, "server.trusted_proxies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport AGENDA_DOTENV_A=\"from-file\"\nAGENDA_DOTENV_B='kept'\nbroken-line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("AGENDA_DOTENV_B", "from-env")
	t.Setenv("AGENDA_DOTENV_A", "")
	os.Unsetenv("AGENDA_DOTENV_A")

	loadDotEnv(path)

	assert.Equal(t, "from-file", os.Getenv("AGENDA_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("AGENDA_DOTENV_B"))
}
