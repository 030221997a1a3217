// Package svd provides rank-k approximation of real matrices by SVD truncation.
package svd

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidRank is returned when k is outside [1, min(m,n)].
	ErrInvalidRank = errors.New("invalid rank")
	// ErrEmptyMatrix is returned for a nil or zero-sized matrix.
	ErrEmptyMatrix = errors.New("empty matrix")
	// ErrFactorize is returned when the SVD does not converge.
	ErrFactorize = errors.New("svd factorization failed")
)

// RankError describes a rank that is out of bounds for a matrix.
type RankError struct {
	K   int
	Max int
}

func (e *RankError) Error() string {
	return fmt.Sprintf("invalid rank %d: must be in [1, %d]", e.K, e.Max)
}

// Unwrap lets errors.Is match ErrInvalidRank.
func (e *RankError) Unwrap() error { return ErrInvalidRank }

// Decomposition is the thin SVD A = U * diag(S) * V^T of an m×n matrix.
// U is m×r, V is n×r and S has r non-increasing values, with r = min(m,n).
type Decomposition struct {
	U *mat.Dense
	S []float64
	V *mat.Dense
}

// Decompose computes the thin SVD of a. The input is not modified.
func Decompose(a *mat.Dense) (*Decomposition, error) {
	if a == nil || a.IsEmpty() {
		return nil, ErrEmptyMatrix
	}
	var f mat.SVD
	if ok := f.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrFactorize
	}
	var u, v mat.Dense
	f.UTo(&u)
	f.VTo(&v)
	return &Decomposition{U: &u, S: f.Values(nil), V: &v}, nil
}

// Dims returns the shape of the decomposed matrix.
func (d *Decomposition) Dims() (rows, cols int) {
	rows, _ = d.U.Dims()
	cols, _ = d.V.Dims()
	return rows, cols
}

// MaxRank returns min(m,n), the largest valid truncation rank.
func (d *Decomposition) MaxRank() int {
	return len(d.S)
}

// Reconstruct returns U_k * diag(S_k) * V_k^T using the first k singular triplets.
func (d *Decomposition) Reconstruct(k int) (*mat.Dense, error) {
	if err := CheckRank(k, d.MaxRank()); err != nil {
		return nil, err
	}
	rows, cols := d.Dims()
	uk := d.U.Slice(0, rows, 0, k)
	vk := d.V.Slice(0, cols, 0, k)

	// Scale the columns of U_k by the singular values instead of building diag(S_k).
	var us mat.Dense
	us.Apply(func(_, j int, v float64) float64 { return v * d.S[j] }, uk)

	out := mat.NewDense(rows, cols, nil)
	out.Mul(&us, vk.T())
	return out, nil
}

// Truncate returns the best rank-k approximation of channel (Eckart–Young).
// The result has the same shape as channel and is not clamped.
func Truncate(channel *mat.Dense, k int) (*mat.Dense, error) {
	if channel == nil || channel.IsEmpty() {
		return nil, ErrEmptyMatrix
	}
	rows, cols := channel.Dims()
	// Check before factorizing so a bad k costs nothing.
	if err := CheckRank(k, min(rows, cols)); err != nil {
		return nil, err
	}
	d, err := Decompose(channel)
	if err != nil {
		return nil, err
	}
	return d.Reconstruct(k)
}

// CheckRank returns a *RankError unless 1 <= k <= maxRank.
func CheckRank(k, maxRank int) error {
	if k < 1 || k > maxRank {
		return &RankError{K: k, Max: maxRank}
	}
	return nil
}
