package tokenizer

import (
	"regexp"
	"strings"
)

var (
	disallowed  = regexp.MustCompile(`[^a-zа-яё0-9'?!., ]`)
	whitespace  = regexp.MustCompile(`\s+`)
	spacedPunct = regexp.MustCompile(` ([.,!?])`)
)

// Normalize lowercases text, replaces every character outside latin and
// cyrillic letters, digits and the punctuation '?!., with a space, collapses
// runs of whitespace and trims the result.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = disallowed.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Tokenize normalises text and splits it into words. Punctuation stays
// attached to the word it follows.
func Tokenize(text string) []string {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// Detokenize joins words with spaces and removes the space in front of
// sentence punctuation.
func Detokenize(words []string) string {
	text := strings.Join(words, " ")
	text = spacedPunct.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// Piece returns tok as it appears in Detokenize output when appended after
// the preceding words. Concatenating the pieces of a word list gives the
// same text as Detokenize.
func Piece(tok string, first bool) string {
	if first || tok == "" || strings.IndexByte(".,!?", tok[0]) >= 0 {
		return tok
	}
	return " " + tok
}
