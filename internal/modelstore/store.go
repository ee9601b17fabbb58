package modelstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/neuralchat/internal/model"
	"github.com/samcharles93/neuralchat/internal/tokenizer"
)

const (
	VocabFile    = "vocab.txt"
	ManifestFile = "manifest.json"

	// DefaultLearningRate applies to models saved without a manifest.
	DefaultLearningRate = 0.7

	maxLineBytes = 64 << 20
)

var (
	ErrCorruptModel   = errors.New("modelstore: corrupt model")
	ErrMatrixNotFound = errors.New("modelstore: matrix not found")
)

// Bundle is everything Load reads back from a model directory.
type Bundle struct {
	Dir      string
	Model    *model.Model
	Vocab    *tokenizer.Vocabulary
	Manifest *Manifest // nil when the directory has no manifest
}

// Matrix returns the weight matrix persisted under name ("Wf", "Wy", ...).
func (b *Bundle) Matrix(name string) (*mat.Dense, error) {
	if b == nil || b.Model == nil {
		return nil, ErrMatrixNotFound
	}
	for _, nm := range b.Model.Weights.Named() {
		if nm.Name == name {
			return nm.M, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMatrixNotFound, name)
}

func matrixFile(name string) string { return name + ".txt" }

// Save writes the five weight matrices, the vocabulary and a manifest to dir,
// creating it if needed. Existing files are overwritten.
func Save(dir string, m *model.Model, vocab *tokenizer.Vocabulary, man Manifest) error {
	if m == nil || m.Weights == nil {
		return fmt.Errorf("modelstore: model is required")
	}
	if vocab.Size() != m.VocabSize {
		return fmt.Errorf("modelstore: vocabulary has %d tokens, model expects %d", vocab.Size(), m.VocabSize)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	for _, nm := range m.Weights.Named() {
		path := filepath.Join(dir, matrixFile(nm.Name))
		if err := writeMatrix(path, nm.M); err != nil {
			return fmt.Errorf("write %s: %w", matrixFile(nm.Name), err)
		}
	}
	if err := writeVocab(filepath.Join(dir, VocabFile), vocab); err != nil {
		return fmt.Errorf("write %s: %w", VocabFile, err)
	}

	man.fill(m)
	if err := writeManifest(filepath.Join(dir, ManifestFile), man); err != nil {
		return fmt.Errorf("write %s: %w", ManifestFile, err)
	}
	return nil
}

// Load reads a model directory written by Save. The vocabulary is read
// first; every matrix must then agree with its size. Nothing is returned
// unless every file loads.
//
// A missing file yields an error matching fs.ErrNotExist. Malformed or
// inconsistent contents yield ErrCorruptModel.
func Load(dir string) (*Bundle, error) {
	vocab, err := readVocab(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", VocabFile, err)
	}

	man, err := readManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ManifestFile, err)
	}

	var w model.Weights
	for _, slot := range []struct {
		name string
		dst  **mat.Dense
	}{
		{"Wf", &w.Wf},
		{"Wi", &w.Wi},
		{"Wc", &w.Wc},
		{"Wo", &w.Wo},
		{"Wy", &w.Wy},
	} {
		m, err := readMatrix(filepath.Join(dir, matrixFile(slot.name)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", matrixFile(slot.name), err)
		}
		*slot.dst = m
	}

	if rows, _ := w.Wy.Dims(); rows != vocab.Size() {
		return nil, fmt.Errorf("%w: Wy has %d rows, vocabulary has %d tokens", ErrCorruptModel, rows, vocab.Size())
	}

	cfg := model.Config{LearningRate: DefaultLearningRate}
	if man != nil {
		if man.LearningRate > 0 {
			cfg.LearningRate = man.LearningRate
		}
		cfg.HiddenSize = man.HiddenSize
		if man.VocabSize != 0 && man.VocabSize != vocab.Size() {
			return nil, fmt.Errorf("%w: manifest vocabulary size %d, vocabulary has %d tokens", ErrCorruptModel, man.VocabSize, vocab.Size())
		}
	}
	m, err := model.FromWeights(cfg, &w)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}

	return &Bundle{Dir: dir, Model: m, Vocab: vocab, Manifest: man}, nil
}

func writeVocab(path string, vocab *tokenizer.Vocabulary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, tok := range vocab.Tokens() {
		_, _ = w.WriteString(tok)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// readVocab reads one token per line; the line number is the index.
func readVocab(path string) (*tokenizer.Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var tokens []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for sc.Scan() {
		tok := strings.TrimSuffix(sc.Text(), "\r")
		if tok == "" {
			return nil, fmt.Errorf("%w: empty token at line %d", ErrCorruptModel, len(tokens)+1)
		}
		tokens = append(tokens, tok)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, tokenizer.ErrEmptyVocabulary)
	}
	v, err := tokenizer.NewVocabulary(tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	return v, nil
}
