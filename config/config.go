package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roomservice-agent/internal/logger"
)

// Config represents the overall agent configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Kiosk      KioskConfig      `yaml:"kiosk"`
	Staff      StaffConfig      `yaml:"staff"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the push notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications sent to staff browsers.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the local HTTP API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// BackendConfig describes the REST API and socket host the agent talks to.
type BackendConfig struct {
	APIBaseURL     string        `yaml:"api_base_url"`
	WSBaseURL      string        `yaml:"ws_base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// ReconnectConfig is the socket reconnect policy.
type ReconnectConfig struct {
	IntervalMs  int `yaml:"interval_ms"`
	MaxAttempts int `yaml:"max_attempts"`
}

// Interval returns the reconnect interval as a duration.
func (r ReconnectConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMs) * time.Millisecond
}

// KioskConfig holds the kiosk role configuration.
type KioskConfig struct {
	Enabled                 bool            `yaml:"enabled"`
	DeviceUID               string          `yaml:"device_uid"`
	PollIntervalMs          int             `yaml:"poll_interval_ms"`
	PollInterval            time.Duration   `yaml:"-"`
	InactivityExpiryMinutes int             `yaml:"inactivity_expiry_minutes"`
	InactivityExpiry        time.Duration   `yaml:"-"`
	CatalogCacheSeconds     int             `yaml:"catalog_cache_seconds"`
	CatalogCacheTTL         time.Duration   `yaml:"-"`
	Reconnect               ReconnectConfig `yaml:"reconnect"`
}

// StaffConfig holds the staff role configuration.
type StaffConfig struct {
	Enabled bool `yaml:"enabled"`
	// Token is the staff access token. When empty it is read from the OS keyring.
	Token     string          `yaml:"token"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// DatabaseConfig holds the durable device state store configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// LogConfig controls the agent logger.
type LogConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	cfg.Backend.APIBaseURL = strings.TrimRight(cfg.Backend.APIBaseURL, "/")
	cfg.Backend.WSBaseURL = strings.TrimRight(cfg.Backend.WSBaseURL, "/")
	if cfg.Backend.APIBaseURL == "" {
		return fmt.Errorf("backend.api_base_url is required")
	}
	if cfg.Backend.WSBaseURL == "" {
		cfg.Backend.WSBaseURL = deriveWSBase(cfg.Backend.APIBaseURL)
	}
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 10
	}
	cfg.Backend.Timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second

	if cfg.Kiosk.Enabled && cfg.Kiosk.DeviceUID == "" {
		return fmt.Errorf("kiosk.device_uid is required when the kiosk role is enabled")
	}
	if cfg.Kiosk.PollIntervalMs <= 0 {
		cfg.Kiosk.PollIntervalMs = 3000
	}
	cfg.Kiosk.PollInterval = time.Duration(cfg.Kiosk.PollIntervalMs) * time.Millisecond
	if cfg.Kiosk.InactivityExpiryMinutes <= 0 {
		cfg.Kiosk.InactivityExpiryMinutes = 30
	}
	cfg.Kiosk.InactivityExpiry = time.Duration(cfg.Kiosk.InactivityExpiryMinutes) * time.Minute
	if cfg.Kiosk.CatalogCacheSeconds <= 0 {
		cfg.Kiosk.CatalogCacheSeconds = 300
	}
	cfg.Kiosk.CatalogCacheTTL = time.Duration(cfg.Kiosk.CatalogCacheSeconds) * time.Second
	if cfg.Kiosk.Reconnect.IntervalMs <= 0 {
		cfg.Kiosk.Reconnect.IntervalMs = 3000
	}
	if cfg.Kiosk.Reconnect.MaxAttempts <= 0 {
		cfg.Kiosk.Reconnect.MaxAttempts = 5
	}

	// Staff dashboards back off harder so an outage is not hammered by every open screen.
	if cfg.Staff.Reconnect.IntervalMs <= 0 {
		cfg.Staff.Reconnect.IntervalMs = 5000
	}
	if cfg.Staff.Reconnect.MaxAttempts <= 0 {
		cfg.Staff.Reconnect.MaxAttempts = 3
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:roomservice.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		logger.Warn("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	return nil
}

// deriveWSBase turns http(s)://host into ws(s)://host.
func deriveWSBase(apiBase string) string {
	switch {
	case strings.HasPrefix(apiBase, "https://"):
		return "wss://" + strings.TrimPrefix(apiBase, "https://")
	case strings.HasPrefix(apiBase, "http://"):
		return "ws://" + strings.TrimPrefix(apiBase, "http://")
	}
	return apiBase
}
