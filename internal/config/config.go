// Package config provides configuration management for apismoke using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "APISMOKE"

// LegacyBackendURLEnv is the frontend's backend URL variable. It binds to
// target.base_url below APISMOKE_TARGET_BASE_URL and, like every env var,
// above the config file.
const LegacyBackendURLEnv = "REACT_APP_BACKEND_URL"

// Default configuration values.
const (
	defaultBaseURL          = "http://localhost:8001"
	defaultAPIPrefix        = "/api"
	defaultOrigin           = "http://localhost:3000"
	defaultAdminEmail       = "admin@trading.com"
	defaultAdminPassword    = "Admin@123456"
	defaultPersistenceDelay = 1 * time.Second
	defaultBodySnippet      = 200
	defaultHistoryLimit     = 20
	defaultWatchSchedule    = "*/5 * * * *"
	defaultMetricsAddress   = ":9464"
	defaultMockHost         = "127.0.0.1"
	defaultMockPort         = 8001
	defaultShutdownTimeout  = 10 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Target      TargetConfig      `mapstructure:"target"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Suite       SuiteConfig       `mapstructure:"suite"`
	Fixture     FixtureConfig     `mapstructure:"fixture"`
	Output      OutputConfig      `mapstructure:"output"`
	History     HistoryConfig     `mapstructure:"history"`
	Watch       WatchConfig       `mapstructure:"watch"`
	Mock        MockConfig        `mapstructure:"mock"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// TargetConfig describes the backend under test.
type TargetConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIPrefix string `mapstructure:"api_prefix"`
	Origin    string `mapstructure:"origin"` // Origin header sent with the CORS preflight
}

// CredentialsConfig holds the pre-seeded admin login.
type CredentialsConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// HTTPConfig holds client transport settings.
type HTTPConfig struct {
	// Timeout is the per-request deadline. Zero means no deadline.
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"` // empty = apismoke/<version>
}

// SuiteConfig holds check behavior settings.
type SuiteConfig struct {
	// PersistenceDelay is the wait between the settings update and the read-back.
	PersistenceDelay time.Duration    `mapstructure:"persistence_delay"`
	BodySnippet      int              `mapstructure:"body_snippet"`
	Endpoints        []EndpointConfig `mapstructure:"endpoints"`
}

// EndpointConfig is one reachability probe for the other-endpoints check.
type EndpointConfig struct {
	Method      string `mapstructure:"method" yaml:"method"`
	Path        string `mapstructure:"path" yaml:"path"`
	Description string `mapstructure:"description" yaml:"description"`
}

// FixtureConfig holds the settings payload written and read back by the suite.
type FixtureConfig struct {
	TelegramBotToken             string `mapstructure:"telegram_bot_token"`
	TelegramAdminChatID          string `mapstructure:"telegram_admin_chat_id"`
	TelegramNotificationsEnabled bool   `mapstructure:"telegram_notifications_enabled"`
}

// OutputConfig holds console and report output settings.
type OutputConfig struct {
	Color      bool   `mapstructure:"color"`
	ReportFile string `mapstructure:"report_file"` // .json, .yaml or .yml
}

// HistoryConfig holds run history storage settings.
type HistoryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
	Limit    int    `mapstructure:"limit"`
}

// WatchConfig holds scheduled-run settings.
type WatchConfig struct {
	Schedule        string        `mapstructure:"schedule"` // 5-field cron expression or @every descriptor
	MetricsAddress  string        `mapstructure:"metrics_address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MockConfig holds the reference backend settings.
type MockConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with APISMOKE_ and use underscores for nesting.
// Example: APISMOKE_TARGET_BASE_URL=http://localhost:8001.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("apismoke")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/apismoke")
		v.AddConfigPath("/etc/apismoke")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	baseURLEnv := []string{"target.base_url", EnvPrefix + "_TARGET_BASE_URL"}
	// Frontend builds export the literal "undefined" when the variable is unset.
	if u := strings.TrimSpace(os.Getenv(LegacyBackendURLEnv)); u != "" && u != "undefined" {
		baseURLEnv = append(baseURLEnv, LegacyBackendURLEnv)
	}
	if err := v.BindEnv(baseURLEnv...); err != nil {
		return nil, fmt.Errorf("binding target.base_url env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if u := strings.TrimSpace(cfg.Target.BaseURL); u == "" || u == "undefined" {
		cfg.Target.BaseURL = defaultBaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Target defaults
	v.SetDefault("target.base_url", defaultBaseURL)
	v.SetDefault("target.api_prefix", defaultAPIPrefix)
	v.SetDefault("target.origin", defaultOrigin)

	// Credential defaults
	v.SetDefault("credentials.email", defaultAdminEmail)
	v.SetDefault("credentials.password", defaultAdminPassword)

	// HTTP defaults
	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("http.user_agent", "")

	// Suite defaults
	v.SetDefault("suite.persistence_delay", defaultPersistenceDelay)
	v.SetDefault("suite.body_snippet", defaultBodySnippet)
	v.SetDefault("suite.endpoints", []map[string]any{
		{"method": http.MethodGet, "path": "/api/", "description": "Root endpoint"},
		{"method": http.MethodGet, "path": "/api/admin/auth/profile", "description": "Admin profile"},
	})

	// Fixture defaults
	v.SetDefault("fixture.telegram_bot_token", "test_token_123")
	v.SetDefault("fixture.telegram_admin_chat_id", "123456789")
	v.SetDefault("fixture.telegram_notifications_enabled", true)

	// Output defaults
	v.SetDefault("output.color", true)
	v.SetDefault("output.report_file", "")

	// History defaults
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "apismoke.db")
	v.SetDefault("history.log_level", "silent")
	v.SetDefault("history.limit", defaultHistoryLimit)

	// Watch defaults
	v.SetDefault("watch.schedule", defaultWatchSchedule)
	v.SetDefault("watch.metrics_address", defaultMetricsAddress)
	v.SetDefault("watch.shutdown_timeout", defaultShutdownTimeout)

	// Mock backend defaults
	v.SetDefault("mock.host", defaultMockHost)
	v.SetDefault("mock.port", defaultMockPort)
	v.SetDefault("mock.email", defaultAdminEmail)
	v.SetDefault("mock.password", defaultAdminPassword)

	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := ValidateBaseURL(c.Target.BaseURL); err != nil {
		return fmt.Errorf("target.base_url %w", err)
	}
	if !strings.HasPrefix(c.Target.APIPrefix, "/") {
		return fmt.Errorf("target.api_prefix must start with /")
	}
	if c.Credentials.Email == "" {
		return fmt.Errorf("credentials.email is required")
	}

	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative")
	}
	if c.Suite.PersistenceDelay < 0 {
		return fmt.Errorf("suite.persistence_delay must not be negative")
	}
	if c.Suite.BodySnippet < 0 {
		return fmt.Errorf("suite.body_snippet must not be negative")
	}
	for i, ep := range c.Suite.Endpoints {
		if ep.Method == "" {
			return fmt.Errorf("suite.endpoints[%d].method is required", i)
		}
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("suite.endpoints[%d].path must start with /", i)
		}
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.History.Driver] {
		return fmt.Errorf("history.driver must be one of: sqlite, postgres, mysql")
	}
	if c.History.Enabled && c.History.DSN == "" {
		return fmt.Errorf("history.dsn is required when history is enabled")
	}

	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return fmt.Errorf("watch.schedule is invalid: %w", err)
	}

	const maxPort = 65535
	if c.Mock.Port < 1 || c.Mock.Port > maxPort {
		return fmt.Errorf("mock.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ValidateBaseURL reports whether raw is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host, got %q", raw)
	}
	return nil
}

// Address returns the mock server address in host:port format.
func (c *MockConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
