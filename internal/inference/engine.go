package inference

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/samcharles93/neuralchat/internal/logits"
	"github.com/samcharles93/neuralchat/internal/model"
	"github.com/samcharles93/neuralchat/internal/tokenizer"
)

var (
	ErrEmptyVocabulary = tokenizer.ErrEmptyVocabulary
	ErrClosed          = errors.New("inference: engine closed")
)

type StreamFunc func(piece string)

type Engine interface {
	Generate(ctx context.Context, req *Request, stream StreamFunc) (*Result, error)
	Close() error
}

type Request struct {
	Prompt string
	Length int
	// Seed < 0 draws a seed from the clock.
	Seed   int64
	Greedy bool
	// Sampler, if set, replaces the one seeded from Seed so a caller can
	// carry a single random stream across requests.
	Sampler *logits.Sampler

	EchoPrompt bool
}

type Result struct {
	Text   string
	Tokens []string
	Stats  Stats
}

// LocalEngine serves generation requests from an in-memory model. Requests
// are serialised; the model is shared read-only between them.
type LocalEngine struct {
	mu     sync.Mutex
	model  *model.Model
	vocab  *tokenizer.Vocabulary
	tok    tokenizer.Tokenizer
	closed bool
}

// NewEngine wraps m and its vocabulary.
func NewEngine(m *model.Model, vocab *tokenizer.Vocabulary) (*LocalEngine, error) {
	if m == nil {
		return nil, fmt.Errorf("inference: model is required")
	}
	if vocab.Size() == 0 {
		return nil, ErrEmptyVocabulary
	}
	if vocab.Size() != m.VocabSize {
		return nil, fmt.Errorf("inference: vocabulary has %d tokens, model expects %d", vocab.Size(), m.VocabSize)
	}
	return &LocalEngine{
		model: m,
		vocab: vocab,
		tok:   tokenizer.NewWordTokenizer(vocab),
	}, nil
}

func (e *LocalEngine) Model() *model.Model { return e.model }

func (e *LocalEngine) Vocab() *tokenizer.Vocabulary { return e.vocab }

func (e *LocalEngine) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Generate normalises and encodes req.Prompt, dropping words outside the
// vocabulary, and samples req.Length tokens after it.
func (e *LocalEngine) Generate(ctx context.Context, req *Request, stream StreamFunc) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	ids, err := e.tok.Encode(req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	if req.EchoPrompt && stream != nil && req.Prompt != "" {
		stream(req.Prompt)
	}

	seed := req.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	sampler := req.Sampler
	if sampler == nil {
		sampler = logits.NewSamplerFromRand(rand.New(rand.NewSource(seed)))
	}
	gen := &Generator{
		Model:   e.model,
		Vocab:   e.vocab,
		Sampler: sampler,
		Greedy:  req.Greedy,
	}

	toks, stats, err := gen.Run(ctx, ids, req.Length, stream)
	if err != nil {
		return nil, err
	}
	text, err := e.tok.Decode(e.vocab.Encode(toks))
	if err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &Result{
		Text:   text,
		Tokens: toks,
		Stats:  stats,
	}, nil
}
