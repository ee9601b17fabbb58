package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/samcharles93/neuralchat/internal/logger"
	"github.com/samcharles93/neuralchat/internal/model"
	"github.com/samcharles93/neuralchat/internal/tokenizer"
)

var ErrEmptyCorpus = errors.New("training: corpus has no tokens")

// EpochStats summarises one pass over the token stream.
type EpochStats struct {
	Epoch    int // 1-based
	Loss     float64
	Pairs    int
	Duration time.Duration
}

// Trainer drives the forward and gradient steps over a token sequence.
type Trainer struct {
	Model  *model.Model
	Logger logger.Logger
	// OnEpoch, if set, is called after every epoch.
	OnEpoch func(EpochStats)
}

// Train runs epochs passes over tokens. Each epoch starts from the zero state
// and carries the state through the whole sequence; every adjacent pair
// (tokens[i], tokens[i+1]) gets one forward step, one loss term and one
// gradient step against the state it followed.
//
// Sequences shorter than two tokens produce zero-loss epochs.
func (t *Trainer) Train(ctx context.Context, tokens []int, epochs int) ([]EpochStats, error) {
	if t.Model == nil {
		return nil, errors.New("training: nil model")
	}
	log := t.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	m := t.Model

	stats := make([]EpochStats, 0, max(epochs, 0))
	for epoch := 1; epoch <= epochs; epoch++ {
		start := time.Now()
		var total float64
		state := m.ZeroState()
		pairs := 0

		for i := 0; i+1 < len(tokens); i++ {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			x, err := m.OneHot(tokens[i])
			if err != nil {
				return stats, fmt.Errorf("epoch %d position %d: %w", epoch, i, err)
			}
			target, err := m.OneHot(tokens[i+1])
			if err != nil {
				return stats, fmt.Errorf("epoch %d position %d: %w", epoch, i+1, err)
			}

			next, err := m.Step(x, state)
			if err != nil {
				return stats, fmt.Errorf("epoch %d position %d: forward: %w", epoch, i, err)
			}
			loss, err := m.Loss(next, target)
			if err != nil {
				return stats, fmt.Errorf("epoch %d position %d: loss: %w", epoch, i, err)
			}
			total += loss
			if err := m.Backward(next, state, target); err != nil {
				return stats, fmt.Errorf("epoch %d position %d: backward: %w", epoch, i, err)
			}
			state = next
			pairs++
		}

		es := EpochStats{Epoch: epoch, Loss: total, Pairs: pairs, Duration: time.Since(start)}
		stats = append(stats, es)
		log.Info("epoch complete", "epoch", epoch, "loss", fmt.Sprintf("%.2f", total), "pairs", pairs, "duration", es.Duration)
		if t.OnEpoch != nil {
			t.OnEpoch(es)
		}
	}
	return stats, nil
}

// Run is a model prepared from a corpus, ready to train.
type Run struct {
	Vocab  *tokenizer.Vocabulary
	Tokens []int
	Model  *model.Model
}

// Prepare normalises and tokenizes corpus, builds the vocabulary in
// first-seen order, maps the corpus to indices and constructs a freshly
// initialised model sized to the vocabulary.
func Prepare(corpus string, cfg model.Config, rng *rand.Rand) (*Run, error) {
	words := tokenizer.Tokenize(corpus)
	vocab := tokenizer.BuildVocabulary(words)
	if vocab.Size() == 0 {
		return nil, ErrEmptyCorpus
	}
	m, err := model.New(cfg, vocab.Size(), rng)
	if err != nil {
		return nil, err
	}
	return &Run{
		Vocab:  vocab,
		Tokens: vocab.Encode(words),
		Model:  m,
	}, nil
}
