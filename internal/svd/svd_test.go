package svd

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rows, cols int, seed int64) *mat.Dense {
	rnd := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rnd.Float64()
	}
	return mat.NewDense(rows, cols, data)
}

func frobeniusDiff(a, b *mat.Dense) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return mat.Norm(&diff, 2)
}

func TestTruncate_PreservesShape(t *testing.T) {
	shapes := [][2]int{{8, 8}, {5, 12}, {12, 5}, {1, 7}}
	for _, s := range shapes {
		a := randomMatrix(s[0], s[1], 1)
		for k := 1; k <= min(s[0], s[1]); k++ {
			got, err := Truncate(a, k)
			require.NoError(t, err)
			r, c := got.Dims()
			assert.Equal(t, s[0], r, "rows for shape %v k=%d", s, k)
			assert.Equal(t, s[1], c, "cols for shape %v k=%d", s, k)
		}
	}
}

func TestTruncate_ErrorNonIncreasingInRank(t *testing.T) {
	a := randomMatrix(20, 15, 7)
	prev := math.Inf(1)
	for k := 1; k <= 15; k++ {
		got, err := Truncate(a, k)
		require.NoError(t, err)
		e := frobeniusDiff(a, got)
		assert.LessOrEqual(t, e, prev+1e-12, "error increased at k=%d", k)
		prev = e
	}
}

func TestTruncate_FullRankReproducesInput(t *testing.T) {
	a := randomMatrix(9, 13, 3)
	got, err := Truncate(a, 9)
	require.NoError(t, err)
	rows, cols := a.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.InDelta(t, a.At(i, j), got.At(i, j), 1e-9)
		}
	}
}

func TestTruncate_ConstantMatrixIsRankOne(t *testing.T) {
	data := make([]float64, 64*64)
	for i := range data {
		data[i] = 0.42
	}
	a := mat.NewDense(64, 64, data)
	got, err := Truncate(a, 1)
	require.NoError(t, err)
	assert.Less(t, frobeniusDiff(a, got), 1e-9)
}

func TestTruncate_DoesNotModifyInput(t *testing.T) {
	a := randomMatrix(6, 6, 11)
	orig := mat.DenseCopyOf(a)
	_, err := Truncate(a, 2)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, orig))
}

func TestTruncate_InvalidRank(t *testing.T) {
	a := randomMatrix(4, 6, 5)
	for _, k := range []int{0, -1, 5, 100} {
		_, err := Truncate(a, k)
		if !errors.Is(err, ErrInvalidRank) {
			t.Errorf("Truncate(k=%d) error = %v, want ErrInvalidRank", k, err)
		}
		var rankErr *RankError
		if errors.As(err, &rankErr) {
			assert.Equal(t, k, rankErr.K)
			assert.Equal(t, 4, rankErr.Max)
		} else {
			t.Errorf("Truncate(k=%d) error is not a *RankError: %v", k, err)
		}
	}
}

func TestTruncate_EmptyMatrix(t *testing.T) {
	_, err := Truncate(nil, 1)
	assert.ErrorIs(t, err, ErrEmptyMatrix)
	_, err = Truncate(&mat.Dense{}, 1)
	assert.ErrorIs(t, err, ErrEmptyMatrix)
}

func TestDecompose_SingularValuesDescending(t *testing.T) {
	d, err := Decompose(randomMatrix(10, 7, 9))
	require.NoError(t, err)
	require.Equal(t, 7, d.MaxRank())
	for i := 1; i < len(d.S); i++ {
		assert.GreaterOrEqual(t, d.S[i-1], d.S[i])
	}
	for _, s := range d.S {
		assert.GreaterOrEqual(t, s, 0.0)
	}
	rows, cols := d.Dims()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 7, cols)
}

func TestDecomposition_ReconstructMatchesTruncate(t *testing.T) {
	a := randomMatrix(12, 10, 21)
	d, err := Decompose(a)
	require.NoError(t, err)
	for _, k := range []int{1, 4, 10} {
		viaDecomp, err := d.Reconstruct(k)
		require.NoError(t, err)
		direct, err := Truncate(a, k)
		require.NoError(t, err)
		assert.Less(t, frobeniusDiff(viaDecomp, direct), 1e-12)
	}
	_, err = d.Reconstruct(11)
	assert.ErrorIs(t, err, ErrInvalidRank)
}

func BenchmarkTruncate(b *testing.B) {
	a := randomMatrix(128, 128, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Truncate(a, 20); err != nil {
			b.Fatal(err)
		}
	}
}
