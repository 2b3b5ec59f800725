// Package config defines the application's root configuration, loaded via
// Viper and passed explicitly to every component at construction time.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Server   ServerConfig   `mapstructure:"server"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Identity IdentityConfig `mapstructure:"identity"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
}

// ColorConfig maps log levels to console colors.
type ColorConfig struct {
	Debug string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" json:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error string `mapstructure:"error" json:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// ServerConfig holds settings for the HTTP service layer.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BrowserConfig holds settings for the headless browser.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors"`
	Args              []string      `mapstructure:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// ProxyConfig holds the upstream egress pool settings.
type ProxyConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Endpoints       []string `mapstructure:"endpoints"`
	File            string   `mapstructure:"file"`
	CooldownSeconds int      `mapstructure:"cooldown_seconds"`
}

// IdentityConfig holds fingerprint profile store settings.
type IdentityConfig struct {
	ProfilesDir string `mapstructure:"profiles_dir"`
	// Seed makes profile generation reproducible when non-zero. Zero seeds
	// from the clock.
	Seed int64 `mapstructure:"seed"`
}

// ScraperConfig holds the orchestration knobs.
type ScraperConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	// MinContentLength is the soft-block threshold: extractions shorter than
	// this are retried while attempts remain.
	MinContentLength      int           `mapstructure:"min_content_length"`
	CookiePruneChance     float64       `mapstructure:"cookie_prune_chance"`
	PreserveCookieDomains []string      `mapstructure:"preserve_cookie_domains"`
	BypassSubAttempts     int           `mapstructure:"bypass_sub_attempts"`
	ChallengePollTimeout  time.Duration `mapstructure:"challenge_poll_timeout"`
}

// CaptchaConfig gates the optional external solver.
type CaptchaConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SetDefaults registers defaults so the app can run with a minimal config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "undetected-scrape-api")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.max_concurrent", 8)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.navigation_timeout", 60*time.Second)

	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.cooldown_seconds", 30)

	v.SetDefault("identity.profiles_dir", "data/fingerprint_profiles")

	v.SetDefault("scraper.max_attempts", 2)
	v.SetDefault("scraper.min_content_length", 50)
	v.SetDefault("scraper.cookie_prune_chance", 0.3)
	v.SetDefault("scraper.preserve_cookie_domains", []string{".google.com", ".cloudflare.com", ".amazon.com"})
	v.SetDefault("scraper.bypass_sub_attempts", 3)
	v.SetDefault("scraper.challenge_poll_timeout", 30*time.Second)

	v.SetDefault("captcha.enabled", false)
	v.SetDefault("captcha.timeout", 60*time.Second)
}

// Load reads the configuration from Viper into a fresh, validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server.max_concurrent must be a positive integer")
	}
	if c.Scraper.MaxAttempts < 1 || c.Scraper.MaxAttempts > 5 {
		return fmt.Errorf("scraper.max_attempts must be within [1, 5], got %d", c.Scraper.MaxAttempts)
	}
	if c.Scraper.CookiePruneChance < 0 || c.Scraper.CookiePruneChance > 1 {
		return fmt.Errorf("scraper.cookie_prune_chance must be within [0, 1]")
	}
	if c.Proxy.Enabled && len(c.Proxy.Endpoints) == 0 && c.Proxy.File == "" {
		return fmt.Errorf("proxy.enabled requires proxy.endpoints or proxy.file")
	}
	if c.Captcha.Enabled && c.Captcha.Endpoint == "" {
		return fmt.Errorf("captcha.enabled requires captcha.endpoint")
	}
	return nil
}
