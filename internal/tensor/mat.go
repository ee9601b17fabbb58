package tensor

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RandDense allocates a rows x cols matrix whose entries are drawn
// independently from N(0,1) and scaled by sqrt(2/(rows+cols)). The caller owns
// rng; the same seed produces identical matrices.
func RandDense(rows, cols int, rng *rand.Rand) (*mat.Dense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: matrix shape %dx%d", ErrInvalidArgument, rows, cols)
	}
	scale := math.Sqrt(2.0 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(rows, cols, data), nil
}

// MatVec computes W·x. The column count of W must equal len(x).
func MatVec(w *mat.Dense, x []float64) ([]float64, error) {
	r, c := w.Dims()
	if c != len(x) {
		return nil, dimError(c, len(x))
	}
	dst := mat.NewVecDense(r, nil)
	dst.MulVec(w, mat.NewVecDense(len(x), x))
	return dst.RawVector().Data, nil
}

// MatTVec computes Wᵗ·x through a transposed view, without copying W. The
// row count of W must equal len(x).
func MatTVec(w *mat.Dense, x []float64) ([]float64, error) {
	r, c := w.Dims()
	if r != len(x) {
		return nil, dimError(r, len(x))
	}
	dst := mat.NewVecDense(c, nil)
	dst.MulVec(w.T(), mat.NewVecDense(len(x), x))
	return dst.RawVector().Data, nil
}

// Outer returns the matrix with entry (i,j) = a[i]*b[j].
func Outer(a, b []float64) (*mat.Dense, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, fmt.Errorf("%w: empty operand in outer product", ErrInvalidArgument)
	}
	out := mat.NewDense(len(a), len(b), nil)
	out.Outer(1, mat.NewVecDense(len(a), a), mat.NewVecDense(len(b), b))
	return out, nil
}

// SGDUpdate applies w -= lr*grad in place.
func SGDUpdate(w, grad *mat.Dense, lr float64) error {
	wr, wc := w.Dims()
	gr, gc := grad.Dims()
	if wr != gr || wc != gc {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, wr, wc, gr, gc)
	}
	var step mat.Dense
	step.Scale(lr, grad)
	w.Sub(w, &step)
	return nil
}
