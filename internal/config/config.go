// Package config loads reviewgate's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".reviewgate.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REVIEWGATE_"

// Config is the top-level configuration.
type Config struct {
	Paths   PathsConfig       `yaml:"paths"`
	Review  ReviewConfig      `yaml:"review"`
	Metrics MetricsConfig     `yaml:"metrics"`
	Server  ServerConfig      `yaml:"server"`
	Gates   map[string]string `yaml:"gates,omitempty"`
	Audit   AuditConfig       `yaml:"audit"`
	Logging LoggingConfig     `yaml:"logging"`
}

// PathsConfig locates task files and per-task state.
type PathsConfig struct {
	TasksDir         string `yaml:"tasks_dir"`
	StateDir         string `yaml:"state_dir"`
	ModificationsDir string `yaml:"modifications_dir"`
}

// ReviewConfig tunes the checkpoints.
type ReviewConfig struct {
	QuickCountdownSeconds int  `yaml:"quick_countdown_seconds"`
	Pager                 bool `yaml:"pager"`
	AuditTimeoutSeconds   int  `yaml:"audit_timeout_seconds"`
}

// MetricsConfig configures the review history database.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// ServerConfig configures `reviewgate serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`
}

// Address is host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Addr, s.Port)
}

// AuditConfig configures the plan audit.
type AuditConfig struct {
	Exclude []string `yaml:"exclude,omitempty"`
	Base    string   `yaml:"base"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			TasksDir:         "tasks",
			StateDir:         filepath.Join("docs", "state"),
			ModificationsDir: filepath.Join("tasks", "modifications"),
		},
		Review: ReviewConfig{
			QuickCountdownSeconds: 10,
			Pager:                 true,
			AuditTimeoutSeconds:   30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			DBPath:  filepath.Join(".reviewgate", "metrics.db"),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1",
			Port: 6142,
		},
		Audit: AuditConfig{
			Base: "HEAD",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies REVIEWGATE_* environment variables. Unparseable
// numbers and booleans are ignored.
func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("TASKS_DIR", &c.Paths.TasksDir)
	str("STATE_DIR", &c.Paths.StateDir)
	str("MODIFICATIONS_DIR", &c.Paths.ModificationsDir)
	integer("QUICK_COUNTDOWN_SECONDS", &c.Review.QuickCountdownSeconds)
	integer("AUDIT_TIMEOUT_SECONDS", &c.Review.AuditTimeoutSeconds)
	boolean("PAGER", &c.Review.Pager)
	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	str("METRICS_DB", &c.Metrics.DBPath)
	str("SERVER_ADDR", &c.Server.Addr)
	integer("SERVER_PORT", &c.Server.Port)
	str("AUDIT_BASE", &c.Audit.Base)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	// REVIEWGATE_GATE_TESTING="go test ./..." sets gates.testing.
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix+"GATE_") {
			continue
		}
		if c.Gates == nil {
			c.Gates = map[string]string{}
		}
		c.Gates[strings.ToLower(strings.TrimPrefix(key, EnvPrefix+"GATE_"))] = val
	}
}

// ValidLevels are the accepted logging levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for values the commands cannot use.
func (c *Config) Validate() error {
	if c.Paths.TasksDir == "" {
		return fmt.Errorf("paths.tasks_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return fmt.Errorf("paths.state_dir must be set")
	}
	if c.Review.QuickCountdownSeconds <= 0 {
		return fmt.Errorf("review.quick_countdown_seconds must be positive, got %d", c.Review.QuickCountdownSeconds)
	}
	if c.Review.AuditTimeoutSeconds <= 0 {
		return fmt.Errorf("review.audit_timeout_seconds must be positive, got %d", c.Review.AuditTimeoutSeconds)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	validLevel := false
	for _, l := range ValidLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}
	if f := c.Logging.Format; f != "json" && f != "console" {
		return fmt.Errorf("invalid logging format: %s (valid: json, console)", f)
	}
	for _, pattern := range c.Audit.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid audit.exclude pattern: %q", pattern)
		}
	}
	return nil
}
