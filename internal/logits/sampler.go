package logits

import (
	"math/rand"
)

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed int64
}

// Sampler draws indices from non-negative weight vectors. It owns its random
// source and is not safe for concurrent use.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a new sampler seeded from cfg.
func NewSampler(cfg SamplerConfig) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewSamplerFromRand returns a sampler that draws from rng. The caller keeps
// ownership and must not share rng across goroutines.
func NewSamplerFromRand(rng *rand.Rand) *Sampler {
	return &Sampler{rng: rng}
}

// Sample draws a single index from probs by roulette-wheel selection:
//
//  1. If the weights sum to zero or less, an index is chosen uniformly.
//  2. Otherwise r is drawn from [0, sum) and the first index whose running
//     prefix sum reaches r is returned.
//  3. If rounding leaves r above every prefix sum, the last index is
//     returned.
//
// Sample panics if probs is empty.
func (s *Sampler) Sample(probs []float64) int {
	if len(probs) == 0 {
		panic("sample: empty distribution")
	}
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if sum <= 0 {
		return s.rng.Intn(len(probs))
	}
	r := s.rng.Float64() * sum
	var acc float64
	for i, p := range probs {
		acc += p
		if acc >= r {
			return i
		}
	}
	return len(probs) - 1
}

// Clamp forces idx into [0, n).
func Clamp(idx, n int) int {
	return max(0, min(idx, n-1))
}

// argmax returns the index of the maximum value in the slice. If the slice is empty it panics.
func argmax(x []float64) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// Greedy returns the most probable index.
func Greedy(probs []float64) int {
	return argmax(probs)
}
