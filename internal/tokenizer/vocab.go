package tokenizer

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyVocabulary = errors.New("tokenizer: empty vocabulary")
	ErrDuplicateToken  = errors.New("tokenizer: duplicate token")
)

// Vocabulary is a bijection between tokens and the dense index range
// [0, Size()). It is immutable once built.
type Vocabulary struct {
	index  map[string]int
	tokens []string
}

// BuildVocabulary assigns indices in first-seen order. Empty tokens are
// skipped.
func BuildVocabulary(tokens []string) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int)}
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, ok := v.index[tok]; ok {
			continue
		}
		v.index[tok] = len(v.tokens)
		v.tokens = append(v.tokens, tok)
	}
	return v
}

// NewVocabulary builds a vocabulary from an ordered token list, where a
// token's position is its index. Duplicates are rejected.
func NewVocabulary(ordered []string) (*Vocabulary, error) {
	v := &Vocabulary{
		index:  make(map[string]int, len(ordered)),
		tokens: make([]string, 0, len(ordered)),
	}
	for i, tok := range ordered {
		if prev, ok := v.index[tok]; ok {
			return nil, fmt.Errorf("%w: %q at %d and %d", ErrDuplicateToken, tok, prev, i)
		}
		v.index[tok] = i
		v.tokens = append(v.tokens, tok)
	}
	return v, nil
}

func (v *Vocabulary) Size() int {
	if v == nil {
		return 0
	}
	return len(v.tokens)
}

func (v *Vocabulary) Index(tok string) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.index[tok]
	return i, ok
}

func (v *Vocabulary) Token(i int) (string, bool) {
	if v == nil || i < 0 || i >= len(v.tokens) {
		return "", false
	}
	return v.tokens[i], true
}

// Tokens returns a copy of the tokens ordered by index.
func (v *Vocabulary) Tokens() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.tokens...)
}

// Encode maps tokens to indices, silently skipping tokens that are not in
// the vocabulary.
func (v *Vocabulary) Encode(tokens []string) []int {
	ids := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		if i, ok := v.Index(tok); ok {
			ids = append(ids, i)
		}
	}
	return ids
}
