//go:build linux

package main

import (
	"errors"
	"io"
	"testing"
)

func feedAll(t *testing.T, e *lineEditor, input string) (string, bool, error) {
	t.Helper()
	for i := 0; i < len(input); i++ {
		line, done, err := e.feed(input[i])
		if err != nil || done {
			return line, done, err
		}
	}
	return "", false, nil
}

func TestLineEditorEditing(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello\r", "hello"},
		{"backspace", "helo\x7f\x7fllo\r", "hello"},
		{"insert after left arrow", "hllo\x1b[D\x1b[D\x1b[De\r", "hello"},
		{"home and end", "ello\x1b[Hh\x1b[F!\r", "hello!"},
		{"ctrl-w deletes word", "hello big world\x17\x17there\r", "hello there"},
		{"alt-b moves a word", "one three\x1bbtwo \r", "one two three"},
		{"delete key", "hello\x01\x1b[3~\x1b[3~j\r", "jllo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &lineEditor{prompt: "> "}
			line, done, err := feedAll(t, e, tc.input)
			if err != nil || !done {
				t.Fatalf("feed: done=%v err=%v", done, err)
			}
			if line != tc.want {
				t.Fatalf("got %q want %q", line, tc.want)
			}
		})
	}
}

func TestLineEditorEOF(t *testing.T) {
	e := &lineEditor{}
	if _, _, err := feedAll(t, e, "\x04"); !errors.Is(err, io.EOF) {
		t.Fatalf("Ctrl+D on empty line: got %v", err)
	}
	e = &lineEditor{}
	if _, _, err := feedAll(t, e, "abc\x03"); !errors.Is(err, io.EOF) {
		t.Fatalf("Ctrl+C: got %v", err)
	}
}

func TestLineEditorHistory(t *testing.T) {
	prev := chatHistory
	t.Cleanup(func() { chatHistory = prev })
	chatHistory = []string{"first", "second"}

	e := &lineEditor{histPos: len(chatHistory)}
	line, done, err := feedAll(t, e, "dra\x1b[A\x1b[A\r")
	if err != nil || !done || line != "first" {
		t.Fatalf("history up: got %q done=%v err=%v", line, done, err)
	}

	e = &lineEditor{histPos: len(chatHistory)}
	line, _, _ = feedAll(t, e, "draft\x1b[A\x1b[B\r")
	if line != "draft" {
		t.Fatalf("history down should restore draft, got %q", line)
	}
}
