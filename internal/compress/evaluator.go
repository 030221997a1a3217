// Package compress evaluates rank-truncated SVD compression of colour and grayscale images.
package compress

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/rankpress/internal/models"
	"github.com/hyperjump/rankpress/internal/svd"
)

var (
	// ErrEmptyInput is returned when an image is nil or has zero size.
	ErrEmptyInput = errors.New("empty input image")
	// ErrShapeMismatch is returned when channels disagree in shape or count.
	ErrShapeMismatch = errors.New("channel shape mismatch")
)

// RankError reports a rank that is invalid for one of the evaluated images.
type RankError struct {
	Kind models.Kind
	Err  error
}

func (e *RankError) Error() string {
	return fmt.Sprintf("%s image: %v", e.Kind, e.Err)
}

func (e *RankError) Unwrap() error { return e.Err }

// Evaluation holds the output of Evaluate. For every requested rank, in order,
// the colour entry precedes the grayscale entry in both slices.
type Evaluation struct {
	Images  []*models.CompressedImage
	Records []models.MetricRecord
}

// Evaluator runs SVD compression over an image pair. It keeps no state between calls.
type Evaluator struct {
	workers int
	logger  *zap.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithWorkers sets how many ranks are evaluated concurrently. Values below 2 mean sequential.
func WithWorkers(n int) EvaluatorOption {
	return func(e *Evaluator) { e.workers = n }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{workers: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// prepared holds the per-channel decompositions of an input pair, shared across ranks.
type prepared struct {
	color       *models.Image
	gray        *models.Image
	colorDecomp []*svd.Decomposition
	grayDecomp  *svd.Decomposition
}

// Evaluate compresses color (three channels) and gray (one channel) at every rank
// and measures each reconstruction. All ranks are validated first; if any is out
// of bounds for either image, no results are returned.
func (e *Evaluator) Evaluate(color, gray *models.Image, ranks []int) (*Evaluation, error) {
	if err := validateInputs(color, gray); err != nil {
		return nil, err
	}
	for _, k := range ranks {
		if err := CheckRank(color, gray, k); err != nil {
			return nil, err
		}
	}
	p, err := prepare(color, gray)
	if err != nil {
		return nil, err
	}

	results := make([]*Evaluation, len(ranks))
	g := new(errgroup.Group)
	g.SetLimit(max(e.workers, 1))
	for i, k := range ranks {
		i, k := i, k
		g.Go(func() error {
			res, err := p.evaluateRank(k)
			if err != nil {
				return err
			}
			results[i] = res
			e.logger.Debug("rank evaluated",
				zap.Int("rank", k),
				zap.Float64("color_psnr", res.Records[0].PSNR),
				zap.Float64("gray_psnr", res.Records[1].PSNR))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Evaluation{
		Images:  make([]*models.CompressedImage, 0, 2*len(ranks)),
		Records: make([]models.MetricRecord, 0, 2*len(ranks)),
	}
	for _, res := range results {
		out.Images = append(out.Images, res.Images...)
		out.Records = append(out.Records, res.Records...)
	}
	return out, nil
}

// EvaluateRank compresses and measures the pair at a single rank. It is useful to
// callers that want to skip invalid ranks instead of aborting.
func (e *Evaluator) EvaluateRank(color, gray *models.Image, k int) (*Evaluation, error) {
	if err := validateInputs(color, gray); err != nil {
		return nil, err
	}
	if err := CheckRank(color, gray, k); err != nil {
		return nil, err
	}
	p, err := prepare(color, gray)
	if err != nil {
		return nil, err
	}
	return p.evaluateRank(k)
}

// CheckRank reports whether k is a valid truncation rank for both images.
func CheckRank(color, gray *models.Image, k int) error {
	cr, cc := color.Dims()
	if err := svd.CheckRank(k, min(cr, cc)); err != nil {
		return &RankError{Kind: models.KindColor, Err: err}
	}
	gr, gc := gray.Dims()
	if err := svd.CheckRank(k, min(gr, gc)); err != nil {
		return &RankError{Kind: models.KindGrayscale, Err: err}
	}
	return nil
}

// ApplyPerChannel runs fn on every channel of img independently and reassembles
// the results into an image of the same shape.
func ApplyPerChannel(img *models.Image, fn func(c int, channel *mat.Dense) (*mat.Dense, error)) (*models.Image, error) {
	if err := checkChannels(img, img.NumChannels()); err != nil {
		return nil, err
	}
	rows, cols := img.Dims()
	out := make([]*mat.Dense, img.NumChannels())
	for c, ch := range img.Channels {
		res, err := fn(c, ch)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c, err)
		}
		if r, cl := res.Dims(); r != rows || cl != cols {
			return nil, fmt.Errorf("%w: channel %d result is %dx%d, want %dx%d", ErrShapeMismatch, c, r, cl, rows, cols)
		}
		out[c] = res
	}
	return models.NewImage(out...), nil
}

func prepare(color, gray *models.Image) (*prepared, error) {
	p := &prepared{color: color, gray: gray, colorDecomp: make([]*svd.Decomposition, len(color.Channels))}
	for c, ch := range color.Channels {
		d, err := svd.Decompose(ch)
		if err != nil {
			return nil, fmt.Errorf("color channel %d: %w", c, err)
		}
		p.colorDecomp[c] = d
	}
	d, err := svd.Decompose(gray.Channels[0])
	if err != nil {
		return nil, fmt.Errorf("grayscale: %w", err)
	}
	p.grayDecomp = d
	return p, nil
}

func (p *prepared) evaluateRank(k int) (*Evaluation, error) {
	colorRec, err := ApplyPerChannel(p.color, func(c int, _ *mat.Dense) (*mat.Dense, error) {
		return p.colorDecomp[c].Reconstruct(k)
	})
	if err != nil {
		return nil, &RankError{Kind: models.KindColor, Err: err}
	}
	grayRec, err := p.grayDecomp.Reconstruct(k)
	if err != nil {
		return nil, &RankError{Kind: models.KindGrayscale, Err: err}
	}
	grayImg := models.NewImage(grayRec)

	colorRecord, err := measure(models.KindColor, p.color, colorRec, k)
	if err != nil {
		return nil, err
	}
	grayRecord, err := measure(models.KindGrayscale, p.gray, grayImg, k)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Images: []*models.CompressedImage{
			{Kind: models.KindColor, Rank: k, Image: colorRec},
			{Kind: models.KindGrayscale, Rank: k, Image: grayImg},
		},
		Records: []models.MetricRecord{colorRecord, grayRecord},
	}, nil
}

func measure(kind models.Kind, original, reconstructed *models.Image, k int) (models.MetricRecord, error) {
	m, n := original.Dims()
	psnr, err := PSNR(original, reconstructed, DataRange)
	if err != nil {
		return models.MetricRecord{}, fmt.Errorf("%s psnr: %w", kind, err)
	}
	return models.MetricRecord{
		Kind:             kind,
		Rank:             k,
		CompressionRatio: CompressionRatio(m, n, k, original.NumChannels()),
		PSNR:             psnr,
	}, nil
}

func validateInputs(color, gray *models.Image) error {
	if color.IsEmpty() || gray.IsEmpty() {
		return ErrEmptyInput
	}
	if err := checkChannels(color, models.ColorChannels); err != nil {
		return fmt.Errorf("color image: %w", err)
	}
	if err := checkChannels(gray, 1); err != nil {
		return fmt.Errorf("grayscale image: %w", err)
	}
	return nil
}

// checkChannels verifies img has want non-empty channels of identical shape.
func checkChannels(img *models.Image, want int) error {
	if img.IsEmpty() {
		return ErrEmptyInput
	}
	if img.NumChannels() != want {
		return fmt.Errorf("%w: got %d channels, want %d", ErrShapeMismatch, img.NumChannels(), want)
	}
	rows, cols := img.Dims()
	for c, ch := range img.Channels {
		if ch == nil || ch.IsEmpty() {
			return fmt.Errorf("%w: channel %d", ErrEmptyInput, c)
		}
		if r, cl := ch.Dims(); r != rows || cl != cols {
			return fmt.Errorf("%w: channel %d is %dx%d, want %dx%d", ErrShapeMismatch, c, r, cl, rows, cols)
		}
	}
	return nil
}
