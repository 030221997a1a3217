// Package runner ties image I/O, SVD compression, reporting and run history into one experiment.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/rankpress/internal/compress"
	"github.com/hyperjump/rankpress/internal/config"
	"github.com/hyperjump/rankpress/internal/fileid"
	"github.com/hyperjump/rankpress/internal/imageio"
	"github.com/hyperjump/rankpress/internal/models"
	"github.com/hyperjump/rankpress/internal/report"
	"github.com/hyperjump/rankpress/internal/storage"
)

const (
	originalColorName = "original_color.png"
	originalGrayName  = "original_gray.png"
)

// ErrNoValidRanks is returned when every requested rank was skipped as invalid.
var ErrNoValidRanks = errors.New("no valid ranks to evaluate")

// Runner runs compression experiments as configured.
type Runner struct {
	// mu serializes runs, which share output paths.
	mu        sync.Mutex
	cfg       *config.Config
	evaluator *compress.Evaluator
	store     storage.Storage
	logger    *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStorage records every successful run in store.
func WithStorage(store storage.Storage) RunnerOption {
	return func(r *Runner) { r.store = store }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *config.Config, opts ...RunnerOption) *Runner {
	r := &Runner{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.evaluator = compress.NewEvaluator(
		compress.WithWorkers(cfg.Compression.Workers),
		compress.WithLogger(r.logger),
	)
	return r
}

// Run compresses the image at imagePath, or the first image in the figures folder
// when imagePath is empty. ranks overrides the configured ranks when non-empty.
// Originals, compressed images and the metrics report are written to the configured
// output locations. Concurrent calls run one at a time.
func (r *Runner) Run(ctx context.Context, imagePath string, ranks []int) (*models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ranks) == 0 {
		ranks = r.cfg.Compression.Ranks
	}
	if _, err := report.NewWriter(r.cfg.Output.ReportFormat); err != nil {
		return nil, err
	}
	path, err := r.resolveInput(imagePath)
	if err != nil {
		return nil, err
	}
	r.logger.Info("using image file", zap.String("path", path))

	for _, dir := range []string{r.cfg.Output.OriginalDir, r.cfg.Output.CompressedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	color, err := imageio.Load(path, r.cfg.Input.MaxDimension)
	if err != nil {
		return nil, err
	}
	gray, err := imageio.Grayscale(color)
	if err != nil {
		return nil, err
	}
	height, width := color.Dims()
	r.logger.Debug("image loaded", zap.Int("width", width), zap.Int("height", height))

	ranks, err = r.selectRanks(color, gray, ranks)
	if err != nil {
		return nil, err
	}

	if err := imageio.Save(filepath.Join(r.cfg.Output.OriginalDir, originalColorName), color); err != nil {
		return nil, err
	}
	if err := imageio.Save(filepath.Join(r.cfg.Output.OriginalDir, originalGrayName), gray); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eval, err := r.evaluator.Evaluate(color, gray, ranks)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	for _, ci := range eval.Images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// PSNR was measured on the raw reconstruction; clamping happens only here.
		out := filepath.Join(r.cfg.Output.CompressedDir, CompressedName(ci.Kind, ci.Rank))
		if err := imageio.Save(out, ci.Image); err != nil {
			return nil, err
		}
	}

	if err := report.WriteFile(r.cfg.Output.MetricsPath, r.cfg.Output.ReportFormat, eval.Records); err != nil {
		return nil, err
	}

	run := &models.Run{
		ID:         uuid.New().String(),
		ImagePath:  path,
		ImageID:    fileid.ImageID(path),
		Width:      width,
		Height:     height,
		Ranks:      ranks,
		Records:    eval.Records,
		ReportPath: r.cfg.Output.MetricsPath,
		CreatedAt:  time.Now(),
	}
	if r.store != nil {
		if err := r.store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	r.logger.Info("experiment completed",
		zap.String("run_id", run.ID),
		zap.String("compressed_dir", r.cfg.Output.CompressedDir),
		zap.String("metrics_path", r.cfg.Output.MetricsPath),
		zap.Int("records", len(run.Records)))
	return run, nil
}

// CompressedName returns the file name of a compressed image, e.g. "color_k10.png".
func CompressedName(kind models.Kind, rank int) string {
	prefix := "color"
	if kind == models.KindGrayscale {
		prefix = "gray"
	}
	return fmt.Sprintf("%s_k%d.png", prefix, rank)
}

func (r *Runner) resolveInput(imagePath string) (string, error) {
	if imagePath == "" {
		found, err := imageio.FindFirstImage(r.cfg.Input.FiguresDir, r.cfg.Input.Extensions)
		if err != nil {
			return "", err
		}
		imagePath = found
	}
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image path: %w", err)
	}
	return abs, nil
}

// selectRanks checks every rank before anything is written. Out-of-bounds ranks
// fail the run, or are logged and dropped when skip_invalid_ranks is set.
func (r *Runner) selectRanks(color, gray *models.Image, ranks []int) ([]int, error) {
	valid := make([]int, 0, len(ranks))
	for _, k := range ranks {
		if err := compress.CheckRank(color, gray, k); err != nil {
			if !r.cfg.Compression.SkipInvalidRanks {
				return nil, fmt.Errorf("evaluation failed: %w", err)
			}
			r.logger.Warn("skipping rank", zap.Int("rank", k), zap.Error(err))
			continue
		}
		valid = append(valid, k)
	}
	if len(valid) == 0 {
		return nil, ErrNoValidRanks
	}
	return valid, nil
}
