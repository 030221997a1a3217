package compress

import (
	"fmt"
	"math"

	"github.com/hyperjump/rankpress/internal/models"
)

// DataRange is the peak sample value used for PSNR. Images are normalised to [0,1].
const DataRange = 1.0

// CompressionRatio returns the storage ratio of an m×n image with the given number
// of channels against its rank-k factorization, which keeps U (m×k), k singular
// values and V (k×n) per channel. The channel count cancels out.
func CompressionRatio(m, n, k, channels int) float64 {
	return float64(m*n*channels) / float64(k*(m+n+1)*channels)
}

// MSE returns the mean squared error over every sample of every channel.
func MSE(original, reconstructed *models.Image) (float64, error) {
	if err := sameShape(original, reconstructed); err != nil {
		return 0, err
	}
	var sum float64
	var count int
	for c, orig := range original.Channels {
		rec := reconstructed.Channels[c]
		rows, cols := orig.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				d := orig.At(i, j) - rec.At(i, j)
				sum += d * d
			}
		}
		count += rows * cols
	}
	return sum / float64(count), nil
}

// PSNR returns 10*log10(dataRange^2 / MSE) in dB, or +Inf when MSE is zero.
// It is meant to be called on the raw, unclamped reconstruction.
func PSNR(original, reconstructed *models.Image, dataRange float64) (float64, error) {
	mse, err := MSE(original, reconstructed)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 10 * math.Log10(dataRange*dataRange/mse), nil
}

func sameShape(a, b *models.Image) error {
	if a.IsEmpty() || b.IsEmpty() {
		return ErrEmptyInput
	}
	if a.NumChannels() != b.NumChannels() {
		return fmt.Errorf("%w: %d channels vs %d", ErrShapeMismatch, a.NumChannels(), b.NumChannels())
	}
	for c := range a.Channels {
		ar, ac := a.Channels[c].Dims()
		br, bc := b.Channels[c].Dims()
		if ar != br || ac != bc {
			return fmt.Errorf("%w: channel %d is %dx%d vs %dx%d", ErrShapeMismatch, c, ar, ac, br, bc)
		}
	}
	return nil
}
