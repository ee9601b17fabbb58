package inference

import (
	"fmt"
	"strings"

	"github.com/samcharles93/neuralchat/internal/modelstore"
)

// Loader opens saved models. Its fields become the generation defaults of
// the result.
type Loader struct {
	Length *int
	Seed   *int64
}

type LoadResult struct {
	Engine             *LocalEngine
	Bundle             *modelstore.Bundle
	GenerationDefaults GenDefaults
}

func (l Loader) Load(modelPath string) (*LoadResult, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, fmt.Errorf("model path is required")
	}

	b, err := modelstore.Load(modelPath)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(b.Model, b.Vocab)
	if err != nil {
		return nil, err
	}

	return &LoadResult{
		Engine: engine,
		Bundle: b,
		GenerationDefaults: GenDefaults{
			Length: l.Length,
			Seed:   l.Seed,
		},
	}, nil
}
