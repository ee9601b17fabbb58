package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/neuralchat/internal/tensor"
)

// Backward computes the cross-entropy gradients of one timestep and applies
// them to the weights with plain SGD.
//
// Only cur and the state immediately before it are consulted: the error is
// not carried further back in time and dc receives no contribution from a
// later step. Wy is updated first, and the hidden gradient is taken through
// the updated Wy. The gate derivatives are evaluated on the stored gate
// activations (o, f, i, ĉ) and on the cell value c.
func (m *Model) Backward(cur, prev State, target []float64) error {
	w := m.Weights
	lr := m.Config.LearningRate

	dy, err := tensor.Sub(cur.Output, target)
	if err != nil {
		return fmt.Errorf("output gradient: %w", err)
	}
	dWy, err := tensor.Outer(dy, cur.H)
	if err != nil {
		return fmt.Errorf("Wy gradient: %w", err)
	}
	if err := tensor.SGDUpdate(w.Wy, dWy, lr); err != nil {
		return fmt.Errorf("Wy update: %w", err)
	}

	dh, err := tensor.MatTVec(w.Wy, dy)
	if err != nil {
		return fmt.Errorf("hidden gradient: %w", err)
	}

	// Output gate.
	dO, err := chain(dh, tensor.Tanh(cur.C), tensor.SigmoidGrad(cur.O))
	if err != nil {
		return fmt.Errorf("output gate gradient: %w", err)
	}

	// Cell.
	oTanh, err := tensor.Mul(cur.O, tensor.TanhGrad(cur.C))
	if err != nil {
		return fmt.Errorf("cell gradient: %w", err)
	}
	dc, err := tensor.Mul(dh, oTanh)
	if err != nil {
		return fmt.Errorf("cell gradient: %w", err)
	}

	dF, err := chain(dc, prev.C, tensor.SigmoidGrad(cur.F))
	if err != nil {
		return fmt.Errorf("forget gate gradient: %w", err)
	}
	dI, err := chain(dc, cur.CHat, tensor.SigmoidGrad(cur.I))
	if err != nil {
		return fmt.Errorf("input gate gradient: %w", err)
	}
	dCHat, err := chain(dc, cur.I, tensor.TanhGrad(cur.CHat))
	if err != nil {
		return fmt.Errorf("candidate gradient: %w", err)
	}

	for _, u := range []struct {
		name  string
		w     *mat.Dense
		delta []float64
	}{
		{"Wo", w.Wo, dO},
		{"Wf", w.Wf, dF},
		{"Wi", w.Wi, dI},
		{"Wc", w.Wc, dCHat},
	} {
		grad, err := tensor.Outer(u.delta, cur.XH)
		if err != nil {
			return fmt.Errorf("%s gradient: %w", u.name, err)
		}
		if err := tensor.SGDUpdate(u.w, grad, lr); err != nil {
			return fmt.Errorf("%s update: %w", u.name, err)
		}
	}
	return nil
}

// chain returns (a*b)*c element-wise.
func chain(a, b, c []float64) ([]float64, error) {
	ab, err := tensor.Mul(a, b)
	if err != nil {
		return nil, err
	}
	return tensor.Mul(ab, c)
}
