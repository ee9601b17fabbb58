package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/samcharles93/neuralchat/internal/logits"
	"github.com/samcharles93/neuralchat/internal/model"
	"github.com/samcharles93/neuralchat/internal/tokenizer"
)

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Generator samples continuations from a trained model.
type Generator struct {
	Model   *model.Model
	Vocab   *tokenizer.Vocabulary
	Sampler *logits.Sampler
	// Greedy picks the most probable token instead of sampling.
	Greedy bool
}

// Seed returns the state reached by replaying prompt from the zero state.
// Ids outside the vocabulary are skipped and leave the state untouched.
func (g *Generator) Seed(prompt []int) (model.State, error) {
	state := g.Model.ZeroState()
	for _, id := range prompt {
		if id < 0 || id >= g.Model.VocabSize {
			continue
		}
		x, err := g.Model.OneHot(id)
		if err != nil {
			return model.State{}, err
		}
		if state, err = g.Model.Step(x, state); err != nil {
			return model.State{}, fmt.Errorf("seed: %w", err)
		}
	}
	return state, nil
}

// Generate returns length tokens sampled after prompt.
func (g *Generator) Generate(ctx context.Context, prompt []int, length int) ([]string, error) {
	toks, _, err := g.Run(ctx, prompt, length, nil)
	return toks, err
}

// Run seeds the state with prompt, then repeatedly samples an index from the
// current output distribution, clamps it into the vocabulary, emits its token
// and feeds it back as the next input. stream, if set, receives each token
// rendered as a text piece.
func (g *Generator) Run(ctx context.Context, prompt []int, length int, stream StreamFunc) ([]string, Stats, error) {
	var stats Stats
	if g.Model == nil {
		return nil, stats, fmt.Errorf("generator: model is required")
	}
	n := g.Vocab.Size()
	if n == 0 {
		return nil, stats, ErrEmptyVocabulary
	}
	if length <= 0 {
		return nil, stats, nil
	}

	start := time.Now()
	state, err := g.Seed(prompt)
	if err != nil {
		return nil, stats, err
	}
	stats.PromptTokens = len(prompt)

	out := make([]string, 0, length)
	for i := 0; i < length; i++ {
		if err := ctx.Err(); err != nil {
			return out, stats, err
		}
		next, err := g.pick(state.Output)
		if err != nil {
			return out, stats, err
		}
		next = logits.Clamp(next, n)
		tok, _ := g.Vocab.Token(next)
		out = append(out, tok)
		if stream != nil {
			stream(tokenizer.Piece(tok, i == 0))
		}
		stats.TokensGenerated++

		x, err := g.Model.OneHot(next)
		if err != nil {
			return out, stats, err
		}
		if state, err = g.Model.Step(x, state); err != nil {
			return out, stats, fmt.Errorf("generation step %d: %w", i, err)
		}
	}

	stats.Duration = time.Since(start)
	if stats.Duration.Seconds() > 0 {
		stats.TPS = float64(stats.TokensGenerated) / stats.Duration.Seconds()
	}
	return out, stats, nil
}

func (g *Generator) pick(probs []float64) (idx int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Sample: %v", rec)
		}
	}()
	if g.Greedy {
		return logits.Greedy(probs), nil
	}
	return g.Sampler.Sample(probs), nil
}
