// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Panel    PanelConfig    `mapstructure:"panel" yaml:"panel"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// BrowserConfig holds settings for the shared headless browser process.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration  `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// DatabaseConfig holds the transaction ledger connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// PanelConfig describes the remote admin panel being driven. The selectors
// default to the panel skin this service was built against and can be
// overridden per deployment without a code change.
type PanelConfig struct {
	DefaultPassword string          `mapstructure:"default_password" yaml:"default_password"`
	Selectors       SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
}

// SelectorsConfig maps the panel's form fields and result banners to CSS selectors.
type SelectorsConfig struct {
	LoginUser     string `mapstructure:"login_user" yaml:"login_user"`
	LoginPass     string `mapstructure:"login_pass" yaml:"login_pass"`
	LoginSubmit   string `mapstructure:"login_submit" yaml:"login_submit"`
	LoggedInProbe string `mapstructure:"logged_in_probe" yaml:"logged_in_probe"`
	ResultBanner  string `mapstructure:"result_banner" yaml:"result_banner"`
}

// AuditConfig controls where the month-keyed action log artifacts are written.
type AuditConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "panelgate")
	v.SetDefault("logger.log_file", "panelgate.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1600, "height": 900})
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.action_timeout", "2m")

	// -- Panel --
	v.SetDefault("panel.default_password", "abcd1234")
	v.SetDefault("panel.selectors.login_user", `input[name="username"]`)
	v.SetDefault("panel.selectors.login_pass", `input[name="password"]`)
	v.SetDefault("panel.selectors.login_submit", `button[type="submit"]`)
	v.SetDefault("panel.selectors.logged_in_probe", `a[href*="logout"]`)
	v.SetDefault("panel.selectors.result_banner", `.toast-message, .alert`)

	// -- Audit --
	v.SetDefault("audit.dir", "logs")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind the database URL so it can come from the environment only.
	v.BindEnv("database.url", "PANELGATE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is a required configuration field")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout must be a positive duration")
	}
	if c.Audit.Dir == "" {
		return fmt.Errorf("audit.dir is a required configuration field")
	}
	return nil
}
