// Package main is the rankpress CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/rankpress/internal/cli"
	"github.com/hyperjump/rankpress/internal/config"
	"github.com/hyperjump/rankpress/internal/fileid"
	"github.com/hyperjump/rankpress/internal/models"
	"github.com/hyperjump/rankpress/internal/runner"
	"github.com/hyperjump/rankpress/internal/server"
	"github.com/hyperjump/rankpress/internal/storage"
	"github.com/hyperjump/rankpress/internal/watcher"
	"github.com/hyperjump/rankpress/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/rankpress/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory; if neither exists, the defaults anchored at
// the current directory are used. Returns the config and the path that was loaded
// ("" when running on defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cwd, cwdErr := os.Getwd()
	if path == defaultConfigPath && cwdErr == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		if path == defaultConfigPath && cwdErr == nil && errors.Is(err, os.ErrNotExist) {
			return config.Default(cwd), "", nil
		}
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "run":
		runExperiment()
	case "watch":
		runWatch()
	case "serve", "server":
		runServe()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("rankpress version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// app holds what every long-running command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Storage
	runner *runner.Runner
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}

// setup loads config, applies flag overrides, and builds logger, store and runner.
func setup(configPath string, debug bool, ranks string, reportFormat string) (*app, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if ranks != "" {
		parsed, err := parseRanks(ranks)
		if err != nil {
			return nil, err
		}
		cfg.Compression.Ranks = parsed
	}
	if reportFormat != "" {
		cfg.Output.ReportFormat = reportFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
		zap.Ints("ranks", cfg.Compression.Ranks),
	)

	a := &app{cfg: cfg, logger: logger}
	opts := []runner.RunnerOption{runner.WithLogger(logger)}
	if cfg.Storage.HistoryEnabledOrDefault() {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			_ = logger.Sync()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.store = store
		opts = append(opts, runner.WithStorage(store))
	}
	a.runner = runner.NewRunner(cfg, opts...)
	return a, nil
}

func runExperiment() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	ranks := fs.String("ranks", "", "comma-separated ranks to evaluate (overrides config)")
	format := fs.String("format", "", "report format: latex, text, json, csv, xlsx (overrides config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	out, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	a, err := setup(*configPath, *debug, *ranks, *format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := a.runner.Run(ctx, fs.Arg(0), nil)
	if err != nil {
		a.Close()
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRun(os.Stdout, run, out); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	ranks := fs.String("ranks", "", "comma-separated ranks to evaluate (overrides config)")
	format := fs.String("format", "", "report format (overrides config)")
	_ = fs.Parse(os.Args[2:])

	a, err := setup(*configPath, *debug, *ranks, *format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := startWatcher(ctx, a)
	if err != nil {
		a.logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	a.logger.Info("watching for images", zap.String("figures_dir", w.Root()))
	<-ctx.Done()
	a.logger.Info("Shutting down...")
	w.Stop()
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "also run the experiment when a new image lands in the figures folder")
	_ = fs.Parse(os.Args[2:])

	a, err := setup(*configPath, *debug, "", "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()
	if a.store == nil {
		a.logger.Fatal("serve requires storage.history_enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		w, err := startWatcher(ctx, a)
		if err != nil {
			a.logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(a.runner, a.store, a.cfg, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// startWatcher runs the experiment for every image that settles in the figures folder.
func startWatcher(ctx context.Context, a *app) (*watcher.Watcher, error) {
	opts := []watcher.WatcherOption{watcher.WithRecursive(a.cfg.Watch.Recursive)}
	if a.cfg.Debug {
		opts = append(opts, watcher.WithLogger(a.logger))
	}
	w := watcher.NewWatcher(a.cfg.Input.FiguresDir, a.cfg.Input.Extensions, func(path string) {
		if _, err := a.runner.Run(ctx, path, nil); err != nil {
			a.logger.Warn("watch run failed", zap.String("path", path), zap.Error(err))
		}
	}, opts...)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	if a.cfg.Watch.SyncExisting {
		if err := w.SyncExisting(); err != nil {
			a.logger.Warn("sync existing images failed", zap.Error(err))
		}
	}
	return w, nil
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of runs to list")
	offset := fs.Int("offset", 0, "number of runs to skip")
	image := fs.String("image", "", "only list runs over this image file")
	remove := fs.Bool("delete", false, "delete the run with the given ID")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	out, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := history(context.Background(), os.Stdout, store, historyOptions{
		id:     fs.Arg(0),
		image:  *image,
		limit:  *limit,
		offset: *offset,
		remove: *remove,
		format: out,
	}); err != nil {
		store.Close()
		fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
		os.Exit(1)
	}
}

type historyOptions struct {
	id     string
	image  string
	limit  int
	offset int
	remove bool
	format cli.OutputFormat
}

func history(ctx context.Context, w io.Writer, store storage.Storage, opts historyOptions) error {
	if opts.remove {
		if opts.id == "" {
			return errors.New("-delete requires a run ID")
		}
		if err := store.DeleteRun(ctx, opts.id); err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted run %s\n", opts.id)
		return nil
	}
	if opts.id != "" {
		run, err := store.GetRun(ctx, opts.id)
		if err != nil {
			return err
		}
		return cli.WriteRun(w, run, opts.format)
	}

	var runs []*models.Run
	var err error
	if opts.image != "" {
		abs, absErr := filepath.Abs(opts.image)
		if absErr != nil {
			return absErr
		}
		runs, err = store.ListRunsByImage(ctx, fileid.ImageID(abs))
	} else {
		runs, err = store.ListRuns(ctx, opts.offset, opts.limit)
	}
	if err != nil {
		return err
	}
	return cli.WriteRuns(w, runs, opts.format)
}

type statusConfigResponse struct {
	FiguresDir    string `json:"figures_dir,omitempty"`
	CompressedDir string `json:"compressed_dir,omitempty"`
	MetricsPath   string `json:"metrics_path,omitempty"`
	ReportFormat  string `json:"report_format,omitempty"`
	Ranks         []int  `json:"ranks,omitempty"`
	Workers       int    `json:"workers,omitempty"`
	DatabasePath  string `json:"database_path,omitempty"`
}

type statusResponse struct {
	Runs           int64                 `json:"runs"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	out, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *statusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := writeStatus(os.Stdout, status, out); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusDirect(configPath string) (*statusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()
	count, err := store.CountRuns(context.Background())
	if err != nil {
		return nil, fmt.Errorf("count runs failed: %w", err)
	}
	status := &statusResponse{
		Runs: count,
		Config: &statusConfigResponse{
			FiguresDir:    cfg.Input.FiguresDir,
			CompressedDir: cfg.Output.CompressedDir,
			MetricsPath:   cfg.Output.MetricsPath,
			ReportFormat:  cfg.Output.ReportFormat,
			Ranks:         cfg.Compression.Ranks,
			Workers:       cfg.Compression.Workers,
			DatabasePath:  cfg.Storage.DatabasePath,
		},
	}
	paths := append([]string{cfg.Output.OriginalDir, cfg.Output.CompressedDir, cfg.Output.MetricsPath},
		storage.DatabaseFiles(cfg.Storage.DatabasePath)...)
	diskBytes, err := storage.DiskUsageBytes(paths...)
	if err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func writeStatus(w io.Writer, status *statusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(w, "runs:              %d   # recorded experiments\n", status.Runs)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:  %d   # images, report and history on disk\n", *status.DiskUsageBytes)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "figures_dir:       %s\n", c.FiguresDir)
		fmt.Fprintf(w, "compressed_dir:    %s\n", c.CompressedDir)
		fmt.Fprintf(w, "metrics_path:      %s\n", c.MetricsPath)
		fmt.Fprintf(w, "report_format:     %s\n", c.ReportFormat)
		fmt.Fprintf(w, "ranks:             %v\n", c.Ranks)
		if c.Workers > 0 {
			fmt.Fprintf(w, "workers:           %d\n", c.Workers)
		}
		fmt.Fprintf(w, "database_path:     %s\n", c.DatabasePath)
	}
	return nil
}

// parseRanks parses a comma-separated list of positive ranks, e.g. "10,20,50".
func parseRanks(s string) ([]int, error) {
	var ranks []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid rank %q: %w", part, err)
		}
		ranks = append(ranks, k)
	}
	if len(ranks) == 0 {
		return nil, fmt.Errorf("no ranks in %q", s)
	}
	return ranks, nil
}

// argsReorder moves any flags (and their values) that appear after a positional
// argument to the front, so "rankpress run photo.png -ranks 5" parses -ranks.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`rankpress - SVD rank-truncation image compression experiments

Usage:
  rankpress run [flags] [image]     Compress an image at each rank and write the report
  rankpress watch [flags]           Re-run whenever a new image lands in the figures folder
  rankpress serve [flags]           Start the HTTP API
  rankpress history [flags] [id]    List, show or delete recorded runs
  rankpress status [flags]          Show run count, disk usage and configuration
  rankpress version                 Show version
  rankpress help                    Show this help

Run Flags:
  --config string    Config file path (default: /usr/local/etc/rankpress/config.yaml, or ./config.yaml)
  --debug            Enable debug logging
  --ranks string     Comma-separated ranks, e.g. 10,20,50,100 (overrides config)
  --format string    Report format: latex, text, json, csv, xlsx (overrides config)
  --output string    Output format: text or json (default: text)

Watch Flags:
  --config, --debug, --ranks, --format as for run

Serve Flags:
  --config string    Config file path
  --debug            Enable debug logging
  --watch            Also watch the figures folder

History Flags:
  --limit int        Number of runs to list (default: 20)
  --offset int       Number of runs to skip
  --image string     Only list runs over this image
  --delete           Delete the run with the given ID
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL; empty reads the history database directly
  --output string    Output format: text or json (default: text)

Examples:
  rankpress run
  rankpress run figures/lena.png -ranks 5,25,125
  rankpress run --format xlsx --output json
  rankpress watch --debug
  rankpress serve --watch
  rankpress history --limit 5
  rankpress history 3f0c9a1e-...
  rankpress history --delete 3f0c9a1e-...
  rankpress status --server http://localhost:8080`)
}
