package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix = "DASHBOARD"

	// DefaultBackendURL is the analytics API the dashboard renders.
	DefaultBackendURL = "http://localhost:8000"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Session  SessionConfig  `mapstructure:"session"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Security SecurityConfig `mapstructure:"security"`
	UI       UIConfig       `mapstructure:"ui"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Timeout of zero leaves the transport defaults in place.
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	IdleTTL    time.Duration `mapstructure:"idle_ttl"`
	Secure     bool          `mapstructure:"secure"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `mapstructure:"rate_limit_enabled"`
	RateLimitRPS    int      `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int      `mapstructure:"rate_limit_burst"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	TrustedProxies  []string `mapstructure:"trusted_proxies"`
}

type UIConfig struct {
	ToastDuration time.Duration `mapstructure:"toast_duration"`
	DefaultTheme  string        `mapstructure:"default_theme"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("backend.base_url", DefaultBackendURL)
	v.SetDefault("backend.timeout", 0)

	v.SetDefault("storage.path", defaultStoragePath())
	v.SetDefault("storage.passphrase", "")

	v.SetDefault("session.cookie_name", "dashboard_session")
	v.SetDefault("session.idle_ttl", 2*time.Hour)
	v.SetDefault("session.secure", false)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 20)
	v.SetDefault("security.allowed_origins", []string{"http://localhost:8084"})
	v.SetDefault("security.trusted_proxies", []string{"127.0.0.1"})

	v.SetDefault("ui.toast_duration", 3*time.Second)
	v.SetDefault("ui.default_theme", "light")
}

// Load resolves configuration from defaults, an optional YAML file and
// DASHBOARD_* environment variables, in increasing precedence. A .env
// file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	return LoadViper(viper.New(), path)
}

// LoadViper is Load on a caller-supplied viper instance, e.g. one with
// cobra flags bound to it. Bound flags that were set win over everything
// else.
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.Security.AllowedOrigins = splitList(cfg.Security.AllowedOrigins)
	cfg.Security.TrustedProxies = splitList(cfg.Security.TrustedProxies)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	// SSE streams stay open, so a zero write timeout is allowed.
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout cannot be negative")
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base URL %q must be an absolute URL", c.Backend.BaseURL)
	}

	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout cannot be negative")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name cannot be empty")
	}

	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session idle TTL must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.UI.ToastDuration <= 0 {
		return fmt.Errorf("toast duration must be positive")
	}

	validThemes := []string{"light", "dark"}
	if !slices.Contains(validThemes, c.UI.DefaultTheme) {
		return fmt.Errorf("invalid default theme %q, must be one of: %s", c.UI.DefaultTheme, strings.Join(validThemes, ", "))
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func defaultStoragePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "sales-dashboard", "storage.json")
}
