package inference

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/samcharles93/neuralchat/internal/logits"
	"github.com/samcharles93/neuralchat/internal/model"
	"github.com/samcharles93/neuralchat/internal/tokenizer"
)

func newTestGenerator(t *testing.T, words ...string) *Generator {
	t.Helper()
	vocab := tokenizer.BuildVocabulary(words)
	m, err := model.New(model.Config{HiddenSize: 4, LearningRate: 0.1}, vocab.Size(), rand.New(rand.NewSource(8)))
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	return &Generator{
		Model:   m,
		Vocab:   vocab,
		Sampler: logits.NewSampler(logits.SamplerConfig{Seed: 1}),
	}
}

func TestGenerateLengthAndRange(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, "the", "cat", "sat", ".")
	out, err := g.Generate(context.Background(), []int{0, 1}, 12)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 12 {
		t.Fatalf("expected 12 tokens, got %d", len(out))
	}
	for _, tok := range out {
		if _, ok := g.Vocab.Index(tok); !ok {
			t.Fatalf("token %q not in vocabulary", tok)
		}
	}
}

func TestGenerateNonPositiveLength(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, "a", "b")
	for _, n := range []int{0, -3} {
		out, err := g.Generate(context.Background(), []int{0}, n)
		if err != nil || len(out) != 0 {
			t.Fatalf("length %d: got %v, %v", n, out, err)
		}
	}
}

func TestGenerateEmptyVocabulary(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, "a")
	g.Vocab = tokenizer.BuildVocabulary(nil)
	if _, err := g.Generate(context.Background(), nil, 1); !errors.Is(err, ErrEmptyVocabulary) {
		t.Fatalf("expected ErrEmptyVocabulary, got %v", err)
	}
}

func TestGenerateDeterministicPerSeed(t *testing.T) {
	t.Parallel()

	a := newTestGenerator(t, "x", "y", "z")
	b := newTestGenerator(t, "x", "y", "z")
	outA, _ := a.Generate(context.Background(), []int{2}, 20)
	outB, _ := b.Generate(context.Background(), []int{2}, 20)
	if !slices.Equal(outA, outB) {
		t.Fatalf("same seed produced %v and %v", outA, outB)
	}
}

func TestSeedSkipsOutOfRangeIDs(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, "a", "b", "c")
	want, err := g.Seed([]int{1})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	got, err := g.Seed([]int{-1, 1, 99})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !slices.Equal(got.H, want.H) || !slices.Equal(got.C, want.C) {
		t.Fatal("out-of-range ids changed the state")
	}

	zero, _ := g.Seed(nil)
	for _, v := range zero.H {
		if v != 0 {
			t.Fatalf("empty prompt should leave the zero state, got %v", zero.H)
		}
	}
}

func TestRunStreamsPieces(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, "hi", ",", "there", "!")
	var sb strings.Builder
	out, stats, err := g.Run(context.Background(), []int{0}, 10, func(p string) { sb.WriteString(p) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sb.String() != tokenizer.Detokenize(out) {
		t.Fatalf("streamed %q, detokenized %q", sb.String(), tokenizer.Detokenize(out))
	}
	if stats.TokensGenerated != 10 || stats.PromptTokens != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunGreedyIsStable(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, "a", "b", "c")
	g.Greedy = true
	g.Sampler = nil
	first, err := g.Generate(context.Background(), []int{0}, 8)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, _ := g.Generate(context.Background(), []int{0}, 8)
	if !slices.Equal(first, second) {
		t.Fatalf("greedy decoding differs: %v vs %v", first, second)
	}
}

func TestRunConvertsSamplerPanicToError(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, "a", "b")
	g.Sampler = nil // nil receiver panic in Sample should be converted to an error

	_, _, err := g.Run(context.Background(), []int{0}, 1, nil)
	if err == nil {
		t.Fatalf("expected sampler error")
	}
	if !strings.Contains(err.Error(), "panic in Sample") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := g.Run(ctx, nil, 5, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
