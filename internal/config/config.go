// Package config loads service settings from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHost            = "127.0.0.1"
	defaultPort            = "8080"
	defaultStatusPath      = "/sync-calendar"
	defaultSuccessPath     = "/calendar-connected"
	defaultDatabasePath    = "calsync.db"
	defaultTenant          = "common"
	defaultRefreshInterval = 15 * time.Minute
	defaultRefreshWindow   = 20 * time.Minute
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Outlook  OutlookConfig  `yaml:"outlook"`
	Session  SessionConfig  `yaml:"session"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// AppConfig holds the public base URL and the front-end pages the redirect
// endpoints land on.
type AppConfig struct {
	BaseURL     string `yaml:"base_url"`
	StatusPath  string `yaml:"status_path"`
	SuccessPath string `yaml:"success_path"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type OutlookConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Tenant       string `yaml:"tenant"`
}

type SessionConfig struct {
	Secret string `yaml:"secret"`
}

// RefreshConfig drives the background refresh loop. Durations use
// time.ParseDuration syntax; an interval of "0" disables the loop.
type RefreshConfig struct {
	Interval string `yaml:"interval"`
	Window   string `yaml:"window"`

	interval time.Duration
	window   time.Duration
}

type LogConfig struct {
	Level      string            `yaml:"level"`
	Format     string            `yaml:"format"`
	Categories map[string]string `yaml:"categories"`
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (r RefreshConfig) IntervalDuration() time.Duration { return r.interval }
func (r RefreshConfig) WindowDuration() time.Duration   { return r.window }

// Load reads path (or the first candidate file found when path is empty),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", resolved, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", resolved, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Server.Host, "HOST")
	setFromEnv(&cfg.Server.Port, "PORT")
	setFromEnv(&cfg.App.BaseURL, "APP_URL")
	setFromEnv(&cfg.Database.Path, "CALSYNC_DB")
	setFromEnv(&cfg.Outlook.ClientID, "OUTLOOK_CLIENT_ID")
	setFromEnv(&cfg.Outlook.ClientSecret, "OUTLOOK_CLIENT_SECRET")
	setFromEnv(&cfg.Outlook.Tenant, "OUTLOOK_TENANT")
	setFromEnv(&cfg.Session.Secret, "CALSYNC_SESSION_SECRET")
	setFromEnv(&cfg.Refresh.Interval, "CALSYNC_REFRESH_INTERVAL")
	setFromEnv(&cfg.Log.Level, "CALSYNC_LOG_LEVEL")
	setFromEnv(&cfg.Log.Format, "CALSYNC_LOG_FORMAT")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	defaultString(&cfg.Server.Host, defaultHost)
	defaultString(&cfg.Server.Port, defaultPort)
	defaultString(&cfg.App.StatusPath, defaultStatusPath)
	defaultString(&cfg.App.SuccessPath, defaultSuccessPath)
	defaultString(&cfg.Database.Path, defaultDatabasePath)
	defaultString(&cfg.Outlook.Tenant, defaultTenant)
	defaultString(&cfg.Log.Level, "info")
	defaultString(&cfg.Log.Format, "text")
	cfg.App.BaseURL = strings.TrimRight(cfg.App.BaseURL, "/")
}

func defaultString(dst *string, fallback string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = fallback
	}
}

func (c *Config) validate() error {
	var errs []error

	if c.App.BaseURL == "" {
		errs = append(errs, errors.New("app.base_url (APP_URL) is required"))
	} else if u, err := url.Parse(c.App.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("app.base_url %q must be an absolute URL", c.App.BaseURL))
	}
	if !strings.HasPrefix(c.App.StatusPath, "/") || !strings.HasPrefix(c.App.SuccessPath, "/") {
		errs = append(errs, errors.New("app.status_path and app.success_path must start with /"))
	}

	var err error
	if c.Refresh.interval, err = parseDuration(c.Refresh.Interval, defaultRefreshInterval); err != nil {
		errs = append(errs, fmt.Errorf("refresh.interval: %w", err))
	}
	if c.Refresh.window, err = parseDuration(c.Refresh.Window, defaultRefreshWindow); err != nil {
		errs = append(errs, fmt.Errorf("refresh.window: %w", err))
	}

	return errors.Join(errs...)
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

func resolveConfigPath(explicit string) (string, error) {
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv("CALSYNC_CONFIG"))
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	candidates := []string{
		"config/calsync.yaml",
		"/etc/calsync/calsync.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "calsync", "calsync.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}
