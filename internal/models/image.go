// Package models defines core data structures for images, compression results, and runs.
package models

import "gonum.org/v1/gonum/mat"

// Kind identifies which variant of the input an image or record belongs to.
type Kind string

const (
	// KindColor is the three-channel colour image.
	KindColor Kind = "color"
	// KindGrayscale is the single-channel luminance image.
	KindGrayscale Kind = "grayscale"
)

// ColorChannels is the number of channels of a colour image.
const ColorChannels = 3

// Image is a stack of equally sized channels with samples nominally in [0,1].
// A grayscale image has one channel, a colour image has three (R, G, B).
type Image struct {
	Channels []*mat.Dense
}

// NewImage wraps the given channels. It does not copy them.
func NewImage(channels ...*mat.Dense) *Image {
	return &Image{Channels: channels}
}

// NumChannels returns the number of channels.
func (img *Image) NumChannels() int {
	if img == nil {
		return 0
	}
	return len(img.Channels)
}

// Dims returns the rows and columns of the first channel, or (0, 0) for an empty image.
func (img *Image) Dims() (rows, cols int) {
	if img.NumChannels() == 0 || img.Channels[0] == nil || img.Channels[0].IsEmpty() {
		return 0, 0
	}
	return img.Channels[0].Dims()
}

// IsEmpty reports whether the image has no channels or zero-sized channels.
func (img *Image) IsEmpty() bool {
	rows, cols := img.Dims()
	return rows == 0 || cols == 0
}

// CompressedImage is the rank-k reconstruction of an input image.
type CompressedImage struct {
	Kind  Kind
	Rank  int
	Image *Image
}
