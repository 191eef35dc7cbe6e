package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-code-structure/internal/log"
)

// ReportFormat selects how reports are printed.
type ReportFormat string

const (
	FormatText ReportFormat = "text"
	FormatJSON ReportFormat = "json"
)

// Config holds all configuration for go-code-structure
type Config struct {
	// MergeComposites collapses straight-line chains before structuring
	MergeComposites bool `yaml:"merge_composites" env:"GCS_MERGE_COMPOSITES"`

	// Logging
	LogLevel string `yaml:"log_level" env:"GCS_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"GCS_LOG_JSON"`
	Verbose  bool   `yaml:"verbose" env:"GCS_VERBOSE"`

	// Report cache used by batch runs
	CacheDir  string `yaml:"cache_dir" env:"GCS_CACHE_DIR"`
	CacheSize int    `yaml:"cache_size" env:"GCS_CACHE_SIZE"`

	// MaxNodes rejects larger graphs; 0 disables the limit
	MaxNodes int `yaml:"max_nodes" env:"GCS_MAX_NODES"`

	ReportFormat ReportFormat `yaml:"report_format" env:"GCS_REPORT_FORMAT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MergeComposites: true,
		LogLevel:        "info",
		LogJSON:         false,
		Verbose:         false,
		CacheDir:        ".gcs/cache",
		CacheSize:       256,
		MaxNodes:        0,
		ReportFormat:    FormatText,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gcs/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gcs/config.yaml"
	}
	return filepath.Join(home, ".gcs", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gcs/config.yaml)
func ProjectConfigFilePath() string {
	return ".gcs/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.gcs/config.yaml)
// 2. Environment variables
// 3. Global config (~/.gcs/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	return load(GlobalConfigFilePath(), ProjectConfigFilePath())
}

func load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, globalPath); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is skipped.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GCS_MERGE_COMPOSITES"); v != "" {
		cfg.MergeComposites = parseBool(v)
	}
	if v := os.Getenv("GCS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GCS_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv("GCS_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("GCS_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("GCS_CACHE_SIZE"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheSize = i
		}
	}
	if v := os.Getenv("GCS_MAX_NODES"); v != "" {
		if i := parseInt(v); i >= 0 {
			cfg.MaxNodes = i
		}
	}
	if v := os.Getenv("GCS_REPORT_FORMAT"); v != "" {
		cfg.ReportFormat = ReportFormat(strings.ToLower(v))
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn or error)", c.LogLevel)
	}

	switch c.ReportFormat {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("invalid report_format: %s (must be 'text' or 'json')", c.ReportFormat)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive")
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must be non-negative")
	}

	return nil
}

// Level returns the configured log level; Verbose forces debug.
func (c *Config) Level() log.Level {
	if c.Verbose {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// parseBool accepts true/1/yes
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// parseInt attempts to parse a string as int, returning -1 on failure
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return -1
	}
	return i
}
