package tokenizer

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"Hello, World!", "hello, world!"},
		{"  tabs\tand\nnewlines  ", "tabs and newlines"},
		{"Привет, мир", "привет, мир"},
		{"don't #stop@ me", "don't stop me"},
		{"ёлка Ёж", "ёлка ёж"},
		{"", ""},
		{"***", ""},
	}
	for _, tc := range tests {
		if got := Normalize(tc.input); got != tc.expected {
			t.Errorf("Normalize(%q): expected %q, got %q", tc.input, tc.expected, got)
		}
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	if got := Tokenize("a b"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Tokenize: got %v", got)
	}
	if got := Tokenize("   "); got != nil {
		t.Fatalf("Tokenize of blank text: got %v", got)
	}
}

func TestDetokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		words    []string
		expected string
	}{
		{[]string{"hi", "there", "."}, "hi there."},
		{[]string{"what", "?", "really", "!"}, "what? really!"},
		{[]string{"a", ",", "b"}, "a, b"},
		{nil, ""},
	}
	for _, tc := range tests {
		if got := Detokenize(tc.words); got != tc.expected {
			t.Errorf("Detokenize(%v): expected %q, got %q", tc.words, tc.expected, got)
		}
	}
}

func TestPieceMatchesDetokenize(t *testing.T) {
	t.Parallel()

	cases := [][]string{
		{"hello", ",", "world", "!"},
		{".", "a", "b?"},
		{"one"},
		{"how", "are", "you", "?", "fine", "."},
	}
	for _, words := range cases {
		var got string
		for i, w := range words {
			got += Piece(w, i == 0)
		}
		if want := Detokenize(words); got != want {
			t.Errorf("pieces of %q: got %q, want %q", words, got, want)
		}
	}
}
