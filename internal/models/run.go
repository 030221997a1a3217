package models

import (
	"encoding/json"
	"math"
	"time"
)

// MetricRecord holds the fidelity and space-saving figures for one (kind, rank) pair.
type MetricRecord struct {
	Kind             Kind    `json:"kind"`
	Rank             int     `json:"rank"`
	CompressionRatio float64 `json:"compression_ratio"`
	// PSNR is in dB. It is +Inf when the reconstruction is exact.
	PSNR float64 `json:"psnr_db"`
}

// Lossless reports whether the reconstruction matched the original exactly.
func (r MetricRecord) Lossless() bool {
	return math.IsInf(r.PSNR, 1)
}

// MarshalJSON encodes an infinite PSNR as null, since JSON has no infinity.
func (r MetricRecord) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind             Kind     `json:"kind"`
		Rank             int      `json:"rank"`
		CompressionRatio float64  `json:"compression_ratio"`
		PSNR             *float64 `json:"psnr_db"`
		Lossless         bool     `json:"lossless"`
	}{Kind: r.Kind, Rank: r.Rank, CompressionRatio: r.CompressionRatio, Lossless: r.Lossless()}
	if !r.Lossless() {
		psnr := r.PSNR
		out.PSNR = &psnr
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *MetricRecord) UnmarshalJSON(data []byte) error {
	var in struct {
		Kind             Kind     `json:"kind"`
		Rank             int      `json:"rank"`
		CompressionRatio float64  `json:"compression_ratio"`
		PSNR             *float64 `json:"psnr_db"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Kind, r.Rank, r.CompressionRatio = in.Kind, in.Rank, in.CompressionRatio
	if in.PSNR == nil {
		r.PSNR = math.Inf(1)
	} else {
		r.PSNR = *in.PSNR
	}
	return nil
}

// Run is one persisted compression experiment over a single input image.
type Run struct {
	ID         string         `json:"id"`
	ImagePath  string         `json:"image_path"`
	ImageID    string         `json:"image_id"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Ranks      []int          `json:"ranks"`
	Records    []MetricRecord `json:"records"`
	ReportPath string         `json:"report_path,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RunRequest is the input for triggering a run over the API.
type RunRequest struct {
	Path  string `json:"path,omitempty"`
	Ranks []int  `json:"ranks,omitempty"`
}
