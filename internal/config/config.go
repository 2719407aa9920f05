package config

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	minSecretLength = 16
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr           string
		TrustedProxies []string `mapstructure:"trusted_proxies"`
	}
	Database struct {
		Driver string
		Path   string
		URL    string
	}
	Session struct {
		Secret     string
		TTL        time.Duration
		CookieName string `mapstructure:"cookie_name"`
		Secure     bool
	}
	Authz struct {
		StrictEventCreate bool `mapstructure:"strict_event_create"`
		StrictEventList   bool `mapstructure:"strict_event_list"`
	}
	Log struct {
		Level     string
		Format    string
		ErrorFile string `mapstructure:"error_file"`
	}
	Metrics struct {
		Enabled bool
	}
	RateLimit struct {
		LoginPerMinute float64 `mapstructure:"login_per_minute"`
		LoginBurst     int     `mapstructure:"login_burst"`
	} `mapstructure:"ratelimit"`
	Archive struct {
		Bucket    string
		Region    string
		Endpoint  string
		KeyPrefix string `mapstructure:"key_prefix"`
		Schedule  string
	}
	Sweep struct {
		Schedule string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("AGENDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/agenda.db")
	v.SetDefault("database.url", "")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cookie_name", "agenda.sid")
	v.SetDefault("session.secure", false)
	v.SetDefault("authz.strict_event_create", false)
	v.SetDefault("authz.strict_event_list", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.error_file", "errors.log")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("ratelimit.login_per_minute", 10.0)
	v.SetDefault("ratelimit.login_burst", 5)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.key_prefix", "agenda-errors")
	v.SetDefault("archive.schedule", "@daily")
	v.SetDefault("sweep.schedule", "@every 1h")
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("server.trusted_proxies: %q is neither an IP nor a CIDR", proxy)
			}
		}
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	if len(c.Session.Secret) < minSecretLength {
		return fmt.Errorf("session.secret must be at least %d bytes", minSecretLength)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("session.cookie_name is required")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}

	if c.RateLimit.LoginPerMinute < 0 || c.RateLimit.LoginBurst < 0 {
		return errors.New("ratelimit values must not be negative")
	}

	if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
		return fmt.Errorf("sweep.schedule: %w", err)
	}
	if c.Archive.Bucket != "" {
		if _, err := cron.ParseStandard(c.Archive.Schedule); err != nil {
			return fmt.Errorf("archive.schedule: %w", err)
		}
	}
	return nil
}

// loadDotEnv exports KEY=VALUE lines from path without overriding variables already set.
func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
