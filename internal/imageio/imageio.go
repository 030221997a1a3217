// Package imageio loads images into normalised float channels and writes them back as 8-bit files.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/rankpress/internal/models"
	"github.com/hyperjump/rankpress/pkg/utils"
)

// ErrNoImage is returned when a folder contains no file with a supported extension.
var ErrNoImage = errors.New("no image files found")

// Luminance weights (ITU-R BT.709) used for grayscale conversion.
const (
	lumaR = 0.2125
	lumaG = 0.7154
	lumaB = 0.0721
)

// DefaultExtensions are the image extensions picked up when none are configured.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// FindFirstImage returns the lexically first regular file in dir whose extension matches.
func FindFirstImage(dir string, extensions []string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read figures folder: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && MatchExtension(e.Name(), extensions) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %q", ErrNoImage, dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

// MatchExtension reports whether path has one of the given extensions (case-insensitive,
// leading dot optional). An empty list matches everything.
func MatchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Load decodes the image at path, honouring EXIF orientation, and returns it as a
// three-channel image with samples in [0,1]. When maxDimension is positive, larger
// images are first downscaled to fit within maxDimension×maxDimension.
func Load(path string, maxDimension int) (*models.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image %q: %w", path, err)
	}
	b := img.Bounds()
	if maxDimension > 0 && (b.Dx() > maxDimension || b.Dy() > maxDimension) {
		img = resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)
	}
	return FromImage(img), nil
}

// FromImage converts any image into three normalised R, G, B channels. Alpha is dropped.
func FromImage(img image.Image) *models.Image {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	rows, cols := b.Dy(), b.Dx()
	channels := make([]*mat.Dense, models.ColorChannels)
	data := make([][]float64, models.ColorChannels)
	for c := range channels {
		data[c] = make([]float64, rows*cols)
	}
	for y := 0; y < rows; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+cols*4]
		for x := 0; x < cols; x++ {
			for c := 0; c < models.ColorChannels; c++ {
				data[c][y*cols+x] = float64(row[x*4+c]) / 255.0
			}
		}
	}
	for c := range channels {
		channels[c] = mat.NewDense(rows, cols, data[c])
	}
	return models.NewImage(channels...)
}

// Grayscale returns the luminance of a three-channel image.
func Grayscale(color *models.Image) (*models.Image, error) {
	if color.NumChannels() != models.ColorChannels || color.IsEmpty() {
		return nil, fmt.Errorf("grayscale conversion needs a %d-channel image, got %d", models.ColorChannels, color.NumChannels())
	}
	rows, cols := color.Dims()
	r, g, b := color.Channels[0], color.Channels[1], color.Channels[2]
	gray := mat.NewDense(rows, cols, nil)
	gray.Apply(func(i, j int, _ float64) float64 {
		return lumaR*r.At(i, j) + lumaG*g.At(i, j) + lumaB*b.At(i, j)
	}, gray)
	return models.NewImage(gray), nil
}

// ToImage clamps samples to [0,1] and quantizes them to 8 bits. One-channel images
// become *image.Gray, three-channel images *image.NRGBA.
func ToImage(img *models.Image) (image.Image, error) {
	if img.IsEmpty() {
		return nil, errors.New("cannot export an empty image")
	}
	rows, cols := img.Dims()
	rect := image.Rect(0, 0, cols, rows)
	switch img.NumChannels() {
	case 1:
		out := image.NewGray(rect)
		ch := img.Channels[0]
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				out.Pix[y*out.Stride+x] = utils.QuantizeUnit(ch.At(y, x))
			}
		}
		return out, nil
	case models.ColorChannels:
		out := image.NewNRGBA(rect)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				i := y*out.Stride + x*4
				for c := 0; c < models.ColorChannels; c++ {
					out.Pix[i+c] = utils.QuantizeUnit(img.Channels[c].At(y, x))
				}
				out.Pix[i+3] = 0xff
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot export a %d-channel image", img.NumChannels())
	}
}

// Save clamps and quantizes img and writes it to path. The format follows the extension.
func Save(path string, img *models.Image) error {
	out, err := ToImage(img)
	if err != nil {
		return err
	}
	if err := imaging.Save(out, path); err != nil {
		return fmt.Errorf("failed to save image %q: %w", path, err)
	}
	return nil
}
