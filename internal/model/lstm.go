package model

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/neuralchat/internal/tensor"
)

var (
	ErrInvalidConfig = errors.New("model: invalid config")
	ErrShapeMismatch = errors.New("model: weight shape mismatch")
)

// Config holds the construction parameters of a model. Both values are fixed
// for the lifetime of an instance.
type Config struct {
	HiddenSize   int
	LearningRate float64
}

func (c Config) validate() error {
	if c.HiddenSize <= 0 {
		return fmt.Errorf("%w: hidden size %d", ErrInvalidConfig, c.HiddenSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate %g", ErrInvalidConfig, c.LearningRate)
	}
	return nil
}

// Weights is the full parameter set of the cell.
//
// The gate matrices Wf, Wi, Wc and Wo are [hidden x (vocab+hidden)] and act
// on the concatenation of the one-hot input and the previous hidden vector.
// Wy is [vocab x hidden] and projects the hidden vector to vocabulary logits.
// Only Backward mutates them.
type Weights struct {
	Wf, Wi, Wc, Wo *mat.Dense
	Wy             *mat.Dense
}

// Named returns the matrices keyed by their persisted names, in a fixed order.
func (w *Weights) Named() []NamedMatrix {
	return []NamedMatrix{
		{"Wf", w.Wf},
		{"Wi", w.Wi},
		{"Wc", w.Wc},
		{"Wo", w.Wo},
		{"Wy", w.Wy},
	}
}

type NamedMatrix struct {
	Name string
	M    *mat.Dense
}

// State is the recurrent state produced by one forward step. It is handed by
// value from one step to the next; the previous state is only read.
type State struct {
	H, C   []float64 // hidden and cell vectors [hidden]
	XH     []float64 // input ++ previous hidden [vocab+hidden]
	F, I   []float64 // forget and input gates [hidden]
	CHat   []float64 // candidate cell [hidden]
	O      []float64 // output gate [hidden]
	Output []float64 // next-token distribution [vocab]
}

// Model is a single-layer LSTM language model over a fixed vocabulary.
type Model struct {
	Config    Config
	VocabSize int
	Weights   *Weights
}

// New constructs a model for vocabSize tokens and initialises all five weight
// matrices from rng with a variance-scaled Gaussian.
func New(cfg Config, vocabSize int, rng *rand.Rand) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if vocabSize <= 0 {
		return nil, fmt.Errorf("%w: vocabulary size %d", ErrInvalidConfig, vocabSize)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}

	h := cfg.HiddenSize
	total := vocabSize + h
	w := &Weights{}
	var err error
	for _, slot := range []struct {
		dst        **mat.Dense
		rows, cols int
	}{
		{&w.Wf, h, total},
		{&w.Wi, h, total},
		{&w.Wc, h, total},
		{&w.Wo, h, total},
		{&w.Wy, vocabSize, h},
	} {
		if *slot.dst, err = tensor.RandDense(slot.rows, slot.cols, rng); err != nil {
			return nil, err
		}
	}
	return &Model{Config: cfg, VocabSize: vocabSize, Weights: w}, nil
}

// FromWeights rebuilds a model around previously trained weights. The hidden
// and vocabulary sizes are taken from the matrices; if cfg.HiddenSize is set
// it must agree with them.
func FromWeights(cfg Config, w *Weights) (*Model, error) {
	if w == nil || w.Wf == nil || w.Wi == nil || w.Wc == nil || w.Wo == nil || w.Wy == nil {
		return nil, fmt.Errorf("%w: missing matrix", ErrShapeMismatch)
	}
	vocab, hidden := w.Wy.Dims()
	if cfg.HiddenSize == 0 {
		cfg.HiddenSize = hidden
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.HiddenSize != hidden {
		return nil, fmt.Errorf("%w: Wy has %d columns, config hidden size is %d", ErrShapeMismatch, hidden, cfg.HiddenSize)
	}
	for _, nm := range w.Named()[:4] {
		r, c := nm.M.Dims()
		if r != hidden || c != vocab+hidden {
			return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrShapeMismatch, nm.Name, r, c, hidden, vocab+hidden)
		}
	}
	return &Model{Config: cfg, VocabSize: vocab, Weights: w}, nil
}

// ZeroState returns the state every sequence starts from: zero hidden and
// cell vectors.
func (m *Model) ZeroState() State {
	h := m.Config.HiddenSize
	return State{
		H:      make([]float64, h),
		C:      make([]float64, h),
		XH:     make([]float64, m.VocabSize+h),
		F:      make([]float64, h),
		I:      make([]float64, h),
		CHat:   make([]float64, h),
		O:      make([]float64, h),
		Output: make([]float64, m.VocabSize),
	}
}

// OneHot encodes a vocabulary index.
func (m *Model) OneHot(idx int) ([]float64, error) {
	return tensor.OneHot(m.VocabSize, idx)
}

// Step runs one forward tick of the cell:
//
//	xh = [x, prev.h]
//	f = σ(Wf·xh)  i = σ(Wi·xh)  ĉ = tanh(Wc·xh)  o = σ(Wo·xh)
//	c = f*prev.c + i*ĉ
//	h = o*tanh(c)
//	output = softmax(Wy·h)
//
// The weights are not modified.
func (m *Model) Step(x []float64, prev State) (State, error) {
	if len(x) != m.VocabSize {
		return State{}, fmt.Errorf("model: input length %d, vocabulary size %d", len(x), m.VocabSize)
	}
	w := m.Weights
	var (
		s   State
		err error
	)
	s.XH = tensor.Concat(x, prev.H)

	gate := func(wm *mat.Dense, act func([]float64) []float64) ([]float64, error) {
		z, err := tensor.MatVec(wm, s.XH)
		if err != nil {
			return nil, err
		}
		return act(z), nil
	}
	if s.F, err = gate(w.Wf, tensor.Sigmoid); err != nil {
		return State{}, fmt.Errorf("forget gate: %w", err)
	}
	if s.I, err = gate(w.Wi, tensor.Sigmoid); err != nil {
		return State{}, fmt.Errorf("input gate: %w", err)
	}
	if s.CHat, err = gate(w.Wc, tensor.Tanh); err != nil {
		return State{}, fmt.Errorf("candidate: %w", err)
	}
	if s.O, err = gate(w.Wo, tensor.Sigmoid); err != nil {
		return State{}, fmt.Errorf("output gate: %w", err)
	}

	keep, err := tensor.Mul(s.F, prev.C)
	if err != nil {
		return State{}, fmt.Errorf("cell: %w", err)
	}
	write, err := tensor.Mul(s.I, s.CHat)
	if err != nil {
		return State{}, fmt.Errorf("cell: %w", err)
	}
	if s.C, err = tensor.Add(keep, write); err != nil {
		return State{}, fmt.Errorf("cell: %w", err)
	}
	if s.H, err = tensor.Mul(s.O, tensor.Tanh(s.C)); err != nil {
		return State{}, fmt.Errorf("hidden: %w", err)
	}

	logits, err := tensor.MatVec(w.Wy, s.H)
	if err != nil {
		return State{}, fmt.Errorf("projection: %w", err)
	}
	s.Output = tensor.Softmax(logits)
	return s, nil
}

// Loss is the cross-entropy of the state's output against a one-hot target.
func (m *Model) Loss(s State, target []float64) (float64, error) {
	return tensor.CrossEntropy(s.Output, target)
}
