package config

import "github.com/hyperjump/rankpress/internal/imageio"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Input.FiguresDir == "" {
		cfg.Input.FiguresDir = "./figures"
	}
	if cfg.Input.Extensions == nil {
		cfg.Input.Extensions = append([]string(nil), imageio.DefaultExtensions...)
	}
	if cfg.Output.OriginalDir == "" {
		cfg.Output.OriginalDir = "./results/original"
	}
	if cfg.Output.CompressedDir == "" {
		cfg.Output.CompressedDir = "./results/compressed"
	}
	if cfg.Output.MetricsPath == "" {
		cfg.Output.MetricsPath = "./results/metrics.tex"
	}
	if cfg.Output.ReportFormat == "" {
		cfg.Output.ReportFormat = "latex"
	}
	if cfg.Compression.Ranks == nil {
		cfg.Compression.Ranks = []int{10, 20, 50, 100}
	}
	if cfg.Compression.Workers == 0 {
		cfg.Compression.Workers = 1
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./results/history.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}
