// Package config provides configuration loading and structs for rankpress.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Input       InputConfig       `yaml:"input"`
	Output      OutputConfig      `yaml:"output"`
	Compression CompressionConfig `yaml:"compression"`
	Storage     StorageConfig     `yaml:"storage"`
	Server      ServerConfig      `yaml:"server"`
	Watch       WatchConfig       `yaml:"watch"`
}

// InputConfig holds where input images are found and how they are prepared.
type InputConfig struct {
	FiguresDir string   `yaml:"figures_dir"`
	Extensions []string `yaml:"extensions"`
	// MaxDimension downscales larger images before compression; 0 keeps the original size.
	MaxDimension int `yaml:"max_dimension"`
}

// OutputConfig holds where images and the metrics report are written.
type OutputConfig struct {
	OriginalDir   string `yaml:"original_dir"`
	CompressedDir string `yaml:"compressed_dir"`
	MetricsPath   string `yaml:"metrics_path"`
	ReportFormat  string `yaml:"report_format"`
}

// CompressionConfig holds the ranks to evaluate.
type CompressionConfig struct {
	Ranks            []int `yaml:"ranks"`
	Workers          int   `yaml:"workers"`
	SkipInvalidRanks bool  `yaml:"skip_invalid_ranks"`
}

// StorageConfig holds the run history database.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	HistoryEnabled *bool  `yaml:"history_enabled"`
}

// HistoryEnabledOrDefault returns whether runs are recorded; defaults to true when unset.
func (s *StorageConfig) HistoryEnabledOrDefault() bool {
	if s.HistoryEnabled != nil {
		return *s.HistoryEnabled
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds figures folder watch settings.
type WatchConfig struct {
	Recursive    bool `yaml:"recursive"`
	SyncExisting bool `yaml:"sync_existing"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns the default configuration with relative paths anchored at baseDir.
func Default(baseDir string) *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.expandPaths(baseDir)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if len(c.Compression.Ranks) == 0 {
		return fmt.Errorf("compression.ranks must not be empty")
	}
	if c.Input.MaxDimension < 0 {
		return fmt.Errorf("input.max_dimension must not be negative, got %d", c.Input.MaxDimension)
	}
	if c.Compression.Workers < 0 {
		return fmt.Errorf("compression.workers must not be negative, got %d", c.Compression.Workers)
	}
	return nil
}

func (c *Config) expandPaths(configDir string) {
	c.Input.FiguresDir = expandPath(c.Input.FiguresDir, configDir)
	c.Output.OriginalDir = expandPath(c.Output.OriginalDir, configDir)
	c.Output.CompressedDir = expandPath(c.Output.CompressedDir, configDir)
	c.Output.MetricsPath = expandPath(c.Output.MetricsPath, configDir)
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
