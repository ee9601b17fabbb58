package tokenizer

import "fmt"

// Tokenizer defines the minimal interface used by the CLI and the server.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// WordTokenizer maps normalised words to vocabulary indices.
type WordTokenizer struct {
	Vocab *Vocabulary
}

// NewWordTokenizer returns a tokenizer over v.
func NewWordTokenizer(v *Vocabulary) *WordTokenizer {
	return &WordTokenizer{Vocab: v}
}

// Encode normalises text and returns the indices of its in-vocabulary words.
// Unknown words are dropped.
func (t *WordTokenizer) Encode(text string) ([]int, error) {
	if t.Vocab == nil {
		return nil, ErrEmptyVocabulary
	}
	return t.Vocab.Encode(Tokenize(text)), nil
}

// Decode maps ids back to words and reassembles them into text.
func (t *WordTokenizer) Decode(ids []int) (string, error) {
	if t.Vocab == nil {
		return "", ErrEmptyVocabulary
	}
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		w, ok := t.Vocab.Token(id)
		if !ok {
			return "", fmt.Errorf("tokenizer: id %d outside vocabulary of %d", id, t.Vocab.Size())
		}
		words = append(words, w)
	}
	return Detokenize(words), nil
}
