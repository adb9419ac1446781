package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	rerrors "reflexion/internal/errors"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// SupportedConfigVersions lists schema versions LoadConfig accepts.
var SupportedConfigVersions = []int{1}

// DirName is the per-project state directory.
const DirName = ".reflexion"

// EnvPrefix prefixes environment overrides, e.g. REFLEXION_ANALYSIS_WORKERS.
const EnvPrefix = "REFLEXION"

// Config represents the complete reflexion configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis"`
	Storage  StorageConfig  `json:"storage" mapstructure:"storage"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// AnalysisConfig controls the engine's fan-out
type AnalysisConfig struct {
	// Workers bounds the goroutines used by propagation and classification.
	Workers int `json:"workers" mapstructure:"workers"`
	// ParallelThreshold is the edge count below which propagation stays sequential.
	ParallelThreshold int `json:"parallelThreshold" mapstructure:"parallelThreshold"`
}

// StorageConfig controls the run snapshot store
type StorageConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Path        string `json:"path" mapstructure:"path"`
	Compression string `json:"compression" mapstructure:"compression"` // zstd | none
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug | info | warn | error
	Format string `json:"format" mapstructure:"format"` // human | json
	File   string `json:"file" mapstructure:"file"`     // optional, in addition to stderr
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Analysis: AnalysisConfig{
			Workers:           4,
			ParallelThreshold: 2048,
		},
		Storage: StorageConfig{
			Enabled:     true,
			Path:        filepath.Join(DirName, "reflexion.db"),
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "human",
		},
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.parallelThreshold", d.Analysis.ParallelThreshold)
	v.SetDefault("storage.enabled", d.Storage.Enabled)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.compression", d.Storage.Compression)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
}

// LoadConfig loads configuration from .reflexion/config.json under root.
// A missing file yields the defaults; environment overrides apply either way.
func LoadConfig(root string) (*Config, error) {
	return LoadConfigFromPath(filepath.Join(root, DirName, "config.json"))
}

// LoadConfigFromPath loads configuration from an explicit file path.
func LoadConfigFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is not an error; anything else (bad JSON, permissions) is.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to .reflexion/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	supported := false
	for _, v := range SupportedConfigVersions {
		if c.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{Field: "version", Message: "unsupported config version " + strconv.Itoa(c.Version)}
	}

	if c.Analysis.Workers < 1 {
		return &ConfigError{Field: "analysis.workers", Message: "must be at least 1"}
	}
	if c.Analysis.ParallelThreshold < 0 {
		return &ConfigError{Field: "analysis.parallelThreshold", Message: "must not be negative"}
	}

	switch c.Storage.Compression {
	case "zstd", "none":
	default:
		return &ConfigError{Field: "storage.compression", Message: "must be zstd or none, got " + strconv.Quote(c.Storage.Compression)}
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return &ConfigError{Field: "storage.path", Message: "required when storage is enabled"}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: "unknown level " + strconv.Quote(c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}

	return nil
}

// ResolvePath returns p relative to root unless it is already absolute.
func ResolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// ErrorCode lets ConfigError satisfy errors.Coded
func (e *ConfigError) ErrorCode() rerrors.ErrorCode {
	return rerrors.ConfigInvalid
}
