package modelstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/neuralchat/internal/model"
	"github.com/samcharles93/neuralchat/internal/version"
)

// FormatVersion identifies the on-disk layout written by Save.
const FormatVersion = "neuralchat-text/1"

// Manifest describes a saved model. It is informational: the matrices and
// vocabulary alone are enough to load a model.
type Manifest struct {
	ID           string    `json:"id"`
	Format       string    `json:"format"`
	HiddenSize   int       `json:"hidden_size"`
	VocabSize    int       `json:"vocab_size"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs,omitempty"`
	FinalLoss    float64   `json:"final_loss,omitempty"`
	Corpus       string    `json:"corpus,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Version      string    `json:"version"`
}

// fill completes the fields Save derives from the model.
func (m *Manifest) fill(mdl *model.Model) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Format = FormatVersion
	m.HiddenSize = mdl.Config.HiddenSize
	m.VocabSize = mdl.VocabSize
	m.LearningRate = mdl.Config.LearningRate
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Version == "" {
		m.Version = version.String()
	}
}

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// readManifest returns nil without error when the file does not exist.
func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptModel, err)
	}
	if m.HiddenSize < 0 || m.VocabSize < 0 || m.LearningRate < 0 {
		return nil, fmt.Errorf("%w: negative size in manifest", ErrCorruptModel)
	}
	return &m, nil
}
