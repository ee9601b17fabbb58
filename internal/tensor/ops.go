package tensor

import (
	"fmt"
	"math"
)

// Add returns a + b element-wise.
func Add(a, b []float64) ([]float64, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}

// Sub returns a - b element-wise.
func Sub(a, b []float64) ([]float64, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out, nil
}

// Mul returns the Hadamard product of a and b. A nil operand is rejected
// before the length check.
func Mul(a, b []float64) ([]float64, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil vector in multiply", ErrInvalidArgument)
	}
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out, nil
}

// SubFrom returns s - a[i] for every element.
func SubFrom(s float64, a []float64) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = s - v
	}
	return out
}

// Concat appends b after a in a new slice.
func Concat(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b))
	copy(out, a)
	copy(out[len(a):], b)
	return out
}

// Sigmoid applies the logistic function element-wise.
func Sigmoid(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = 1.0 / (1.0 + math.Exp(-v))
	}
	return out
}

// Tanh applies the hyperbolic tangent element-wise.
func Tanh(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Tanh(v)
	}
	return out
}

// SigmoidGrad returns s*(1-s) where s = Sigmoid(x).
func SigmoidGrad(x []float64) []float64 {
	s := Sigmoid(x)
	out := SubFrom(1, s)
	for i, v := range s {
		out[i] *= v
	}
	return out
}

// TanhGrad returns 1 - tanh(x)^2.
func TanhGrad(x []float64) []float64 {
	sq := Tanh(x)
	for i, v := range sq {
		sq[i] = v * v
	}
	return SubFrom(1, sq)
}

// Softmax returns a probability distribution over x. The maximum is
// subtracted before exponentiating; if the exponentials sum to exactly zero
// the result is uniform.
func Softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	maxv := x[0]
	for _, v := range x[1:] {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(v - maxv)
		out[i] = e
		sum += e
	}
	if sum == 0 {
		u := 1.0 / float64(len(x))
		for i := range out {
			out[i] = u
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// lossEpsilon keeps log away from zero.
const lossEpsilon = 1e-8

// CrossEntropy returns -sum(target * log(pred + eps)), floored at zero. The
// epsilon alone would make a certain prediction score about -1e-8.
func CrossEntropy(pred, target []float64) (float64, error) {
	if err := checkDims(pred, target); err != nil {
		return 0, err
	}
	var loss float64
	for i := range target {
		loss -= target[i] * math.Log(pred[i]+lossEpsilon)
	}
	return max(loss, 0), nil
}

// OneHot returns a vector of length n with a single 1 at idx.
func OneHot(n, idx int) ([]float64, error) {
	if idx < 0 || idx >= n {
		return nil, fmt.Errorf("%w: one-hot index %d outside [0,%d)", ErrInvalidArgument, idx, n)
	}
	v := make([]float64, n)
	v[idx] = 1
	return v, nil
}

func checkDims(a, b []float64) error {
	if len(a) != len(b) {
		return dimError(len(a), len(b))
	}
	return nil
}
