// Package config handles wattdash configuration loading.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/wattdash/config.yaml, /etc/wattdash/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wattdash", "config.yaml"))
	}

	paths = append(paths, "/etc/wattdash/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all wattdash configuration.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Store     StoreConfig     `yaml:"store"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Prices    PricesConfig    `yaml:"prices"`
	Web       WebConfig       `yaml:"web"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"` // text (default) or json
}

// MQTTConfig defines the broker session. Credentials are handed to the
// MQTT client as-is.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // mqtt://, tcp://, mqtts:// or ssl://
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// ClientID overrides the generated "wattdash-<instance id>" client ID.
	ClientID     string `yaml:"client_id"`
	KeepAliveSec int    `yaml:"keepalive_sec"` // default 60
	// RateLimit caps inbound messages per second; 0 disables the cap.
	RateLimit int `yaml:"rate_limit"`
}

// Configured reports whether a broker has been set.
func (c MQTTConfig) Configured() bool {
	return c.Broker != ""
}

// StoreConfig tunes the shared telemetry record.
type StoreConfig struct {
	// LockTimeoutMs bounds how long an update or snapshot waits for the
	// store lock before giving up (default 100).
	LockTimeoutMs int `yaml:"lock_timeout_ms"`
}

// LockTimeout returns the lock wait as a duration.
func (c StoreConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// DashboardConfig controls the snapshot consumer.
type DashboardConfig struct {
	// IntervalMs is the render cadence (default 1000).
	IntervalMs int `yaml:"interval_ms"`
	// LogEverySec emits a one-line snapshot summary to the log at this
	// cadence; 0 disables it.
	LogEverySec int `yaml:"log_every_sec"`
}

// Interval returns the render cadence as a duration.
func (c DashboardConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// PricesConfig holds the fixed unit prices used for cost figures.
type PricesConfig struct {
	Currency    string  `yaml:"currency"`      // display only, default EUR
	GridPerKWh  float64 `yaml:"grid_per_kwh"`  // default 0.30
	SolarPerKWh float64 `yaml:"solar_per_kwh"` // avoided grid cost, default 0.30
	GasPerM3    float64 `yaml:"gas_per_m3"`    // default 2.20
	WaterPerM3  float64 `yaml:"water_per_m3"`  // default 5.00
}

// WebConfig defines the HTTP/WebSocket render surface.
type WebConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Address        string   `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port           int      `yaml:"port"`    // Default: 8080
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			KeepAliveSec: 60,
			RateLimit:    500,
		},
		Store:     StoreConfig{LockTimeoutMs: 100},
		Dashboard: DashboardConfig{IntervalMs: 1000, LogEverySec: 60},
		Prices: PricesConfig{
			Currency:    "EUR",
			GridPerKWh:  0.30,
			SolarPerKWh: 0.30,
			GasPerM3:    2.20,
			WaterPerM3:  5.00,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		DataDir:   "./data",
		LogFormat: "text",
	}
}

// Load reads configuration from a YAML file. A .env file next to the
// config, if present, is loaded into the environment first so that
// ${VAR} references (typically broker credentials) can be kept out of
// the YAML. Variables already set in the environment win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks for values that would fail later at startup.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}

	if c.MQTT.Configured() {
		u, err := url.Parse(c.MQTT.Broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("mqtt.broker: %w", err))
		} else {
			switch u.Scheme {
			case "mqtt", "tcp", "mqtts", "ssl", "ws", "wss":
			default:
				errs = append(errs, fmt.Errorf("mqtt.broker scheme %q not supported", u.Scheme))
			}
		}
	}
	if c.MQTT.KeepAliveSec < 0 || c.MQTT.KeepAliveSec > 65535 {
		errs = append(errs, fmt.Errorf("mqtt.keepalive_sec %d out of range", c.MQTT.KeepAliveSec))
	}
	if c.MQTT.RateLimit < 0 {
		errs = append(errs, errors.New("mqtt.rate_limit must not be negative"))
	}

	if c.Store.LockTimeoutMs <= 0 {
		errs = append(errs, errors.New("store.lock_timeout_ms must be positive"))
	}
	if c.Dashboard.IntervalMs <= 0 {
		errs = append(errs, errors.New("dashboard.interval_ms must be positive"))
	}
	if c.Dashboard.LogEverySec < 0 {
		errs = append(errs, errors.New("dashboard.log_every_sec must not be negative"))
	}

	p := c.Prices
	if p.GridPerKWh < 0 || p.SolarPerKWh < 0 || p.GasPerM3 < 0 || p.WaterPerM3 < 0 {
		errs = append(errs, errors.New("prices must not be negative"))
	}

	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		errs = append(errs, fmt.Errorf("web.port %d out of range", c.Web.Port))
	}

	return errors.Join(errs...)
}
