package modelstore

import (
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/neuralchat/internal/model"
	"github.com/samcharles93/neuralchat/internal/tokenizer"
)

func testModel(t *testing.T, hidden int, words ...string) (*model.Model, *tokenizer.Vocabulary) {
	t.Helper()
	vocab := tokenizer.BuildVocabulary(words)
	m, err := model.New(model.Config{HiddenSize: hidden, LearningRate: 0.3}, vocab.Size(), rand.New(rand.NewSource(17)))
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	return m, vocab
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "model")
	m, vocab := testModel(t, 5, "hello", "world", ",", "привет", "don't")
	if err := Save(dir, m, vocab, Manifest{Epochs: 2, Corpus: "chat.txt"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, nm := range m.Weights.Named() {
		got := b.Model.Weights.Named()[i]
		if !mat.Equal(got.M, nm.M) {
			t.Fatalf("%s differs after round trip", nm.Name)
		}
	}
	if got, want := b.Vocab.Tokens(), vocab.Tokens(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("vocabulary order: got %q want %q", got, want)
	}
	if b.Model.Config != m.Config {
		t.Fatalf("config: got %+v want %+v", b.Model.Config, m.Config)
	}
	if b.Manifest == nil {
		t.Fatal("expected manifest")
	}
	if b.Manifest.ID == "" || b.Manifest.Format != FormatVersion || b.Manifest.Epochs != 2 || b.Manifest.VocabSize != 5 {
		t.Fatalf("unexpected manifest: %+v", b.Manifest)
	}
}

func TestLoadWithoutManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, vocab := testModel(t, 3, "a", "b")
	if err := Save(dir, m, vocab, Manifest{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, ManifestFile)); err != nil {
		t.Fatalf("remove manifest: %v", err)
	}

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Manifest != nil {
		t.Fatalf("expected no manifest, got %+v", b.Manifest)
	}
	if b.Model.Config.HiddenSize != 3 || b.Model.Config.LearningRate != DefaultLearningRate {
		t.Fatalf("unexpected config %+v", b.Model.Config)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	for _, name := range []string{VocabFile, "Wf.txt", "Wy.txt"} {
		dir := t.TempDir()
		m, vocab := testModel(t, 2, "a", "b")
		if err := Save(dir, m, vocab, Manifest{}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			t.Fatalf("remove: %v", err)
		}
		_, err := Load(dir)
		if !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("missing %s: expected fs.ErrNotExist, got %v", name, err)
		}
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("missing %s: error should name the file: %v", name, err)
		}
	}
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"ragged rows", "Wi.txt", "1 2 3\n4 5\n"},
		{"not a number", "Wc.txt", "1 x\n"},
		{"wrong shape", "Wo.txt", "1 2\n3 4\n"},
		{"empty matrix", "Wf.txt", "\n\n"},
		{"vocab mismatch", VocabFile, "a\nb\nc\n"},
		{"duplicate token", VocabFile, "a\na\n"},
		{"bad manifest", ManifestFile, "{not json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			m, vocab := testModel(t, 2, "a", "b")
			if err := Save(dir, m, vocab, Manifest{}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := os.WriteFile(filepath.Join(dir, tc.file), []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			b, err := Load(dir)
			if !errors.Is(err, ErrCorruptModel) {
				t.Fatalf("expected ErrCorruptModel, got %v", err)
			}
			if b != nil {
				t.Fatal("expected no bundle on failure")
			}
		})
	}
}

// Rows written with a trailing separator and CRLF line endings still load.
func TestLoadToleratesTrailingSpaces(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	// vocab 2, hidden 1: gates 1x3, Wy 2x1.
	write(VocabFile, "hi\r\nthere\r\n")
	for _, n := range []string{"Wf", "Wi", "Wc", "Wo"} {
		write(n+".txt", "0.5 -1.0E-3 2.0 \r\n")
	}
	write("Wy.txt", "0.25 \n-0.75 \n")

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Model.Config.HiddenSize != 1 || b.Model.VocabSize != 2 {
		t.Fatalf("unexpected sizes: %+v vocab=%d", b.Model.Config, b.Model.VocabSize)
	}
	if got := b.Model.Weights.Wf.At(0, 1); got != -1e-3 {
		t.Fatalf("Wf[0,1]: got %v", got)
	}
	if tok, _ := b.Vocab.Token(0); tok != "hi" {
		t.Fatalf("token 0: got %q", tok)
	}
}

func TestSaveRejectsVocabularyMismatch(t *testing.T) {
	t.Parallel()

	m, _ := testModel(t, 2, "a", "b")
	other := tokenizer.BuildVocabulary([]string{"a"})
	if err := Save(t.TempDir(), m, other, Manifest{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestBundleMatrix(t *testing.T) {
	t.Parallel()

	m, vocab := testModel(t, 2, "a", "b")
	b := &Bundle{Model: m, Vocab: vocab}
	wy, err := b.Matrix("Wy")
	if err != nil || wy != m.Weights.Wy {
		t.Fatalf("Matrix(Wy): %v", err)
	}
	if _, err := b.Matrix("Wq"); !errors.Is(err, ErrMatrixNotFound) {
		t.Fatalf("expected ErrMatrixNotFound, got %v", err)
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m, vocab := testModel(t, 2, "a", "b")
	for _, name := range []string{"zeta", "alpha", filepath.Join("nested", "beta")} {
		if err := Save(filepath.Join(root, name), m, vocab, Manifest{}); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		filepath.Join(root, "alpha"),
		filepath.Join(root, "nested", "beta"),
		filepath.Join(root, "zeta"),
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v want %v", got, want)
	}

	none, err := Discover(filepath.Join(root, "missing"))
	if err != nil || len(none) != 0 {
		t.Fatalf("missing root: got %v, %v", none, err)
	}
}
