package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/samcharles93/neuralchat/internal/inference"
)

type scriptedLines struct {
	lines   []string
	prompts []string
	err     error
}

func (s *scriptedLines) ReadLine(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type echoEngine struct {
	requests []inference.Request
	err      error
}

func (e *echoEngine) Generate(ctx context.Context, req *inference.Request, stream inference.StreamFunc) (*inference.Result, error) {
	e.requests = append(e.requests, *req)
	if e.err != nil {
		return nil, e.err
	}
	words := strings.Fields(req.Prompt)
	for i := len(words) - 1; i >= 0; i-- {
		if stream != nil {
			if i == len(words)-1 {
				stream(words[i])
			} else {
				stream(" " + words[i])
			}
		}
	}
	return &inference.Result{}, nil
}

func (e *echoEngine) Close() error { return nil }

func TestChatLoopStopsOnExit(t *testing.T) {
	t.Parallel()

	in := &scriptedLines{lines: []string{"hello there", "  ExIt ", "never read"}}
	eng := &echoEngine{}
	var out bytes.Buffer
	n := 5
	if err := chatLoop(context.Background(), eng, inference.RequestOptions{Length: &n}, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}

	if len(eng.requests) != 1 {
		t.Fatalf("expected one reply, got %d", len(eng.requests))
	}
	if eng.requests[0].Prompt != "hello there" || eng.requests[0].Length != 5 {
		t.Fatalf("unexpected request %+v", eng.requests[0])
	}
	if len(in.lines) != 1 {
		t.Fatalf("input after exit should not be read, remaining %v", in.lines)
	}
	for _, p := range in.prompts {
		if p != userPrompt {
			t.Fatalf("unexpected prompt %q", p)
		}
	}
	if !strings.Contains(out.String(), "Bot: there hello\n") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestChatLoopSharesSamplerAcrossTurns(t *testing.T) {
	t.Parallel()

	in := &scriptedLines{lines: []string{"one", "two", "three"}}
	eng := &echoEngine{}
	seed := int64(8)
	if err := chatLoop(context.Background(), eng, inference.RequestOptions{Seed: &seed}, in, io.Discard); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(eng.requests) != 3 {
		t.Fatalf("expected three replies, got %d", len(eng.requests))
	}
	first := eng.requests[0].Sampler
	if first == nil {
		t.Fatal("expected a session sampler on the request")
	}
	for i, req := range eng.requests[1:] {
		if req.Sampler != first {
			t.Fatalf("turn %d uses a different sampler", i+2)
		}
	}
}

func TestChatLoopEndsOnEOF(t *testing.T) {
	t.Parallel()

	in := &scriptedLines{lines: []string{"a", "b"}}
	eng := &echoEngine{}
	var out bytes.Buffer
	if err := chatLoop(context.Background(), eng, inference.RequestOptions{}, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(eng.requests) != 2 {
		t.Fatalf("expected two replies, got %d", len(eng.requests))
	}
	if eng.requests[0].Length != inference.DefaultLength {
		t.Fatalf("expected default length, got %d", eng.requests[0].Length)
	}
	if got := strings.Count(out.String(), botPrefix); got != 2 {
		t.Fatalf("expected two bot lines, got %d in %q", got, out.String())
	}
}

func TestChatLoopPropagatesErrors(t *testing.T) {
	t.Parallel()

	readErr := errors.New("terminal gone")
	if err := chatLoop(context.Background(), &echoEngine{}, inference.RequestOptions{}, &scriptedLines{err: readErr}, io.Discard); !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}

	genErr := errors.New("boom")
	in := &scriptedLines{lines: []string{"hi"}}
	if err := chatLoop(context.Background(), &echoEngine{err: genErr}, inference.RequestOptions{}, in, io.Discard); !errors.Is(err, genErr) {
		t.Fatalf("expected generate error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := chatLoop(ctx, &echoEngine{}, inference.RequestOptions{}, &scriptedLines{lines: []string{"hi"}}, io.Discard); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChatLoopWithTrainedModel(t *testing.T) {
	t.Parallel()

	res := trainTestCorpus(t, "the cat sat on the mat. the dog sat on the log.", 3)
	eng, err := inference.NewEngine(res.run.Model, res.run.Vocab)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	in := &scriptedLines{lines: []string{"the cat", "exit"}}
	var out bytes.Buffer
	n, seed := 6, int64(4)
	if err := chatLoop(context.Background(), eng, inference.RequestOptions{Length: &n, Seed: &seed}, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}

	var reply string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, botPrefix) {
			reply = strings.TrimPrefix(line, botPrefix)
		}
	}
	if reply == "" {
		t.Fatalf("no reply in %q", out.String())
	}
	for _, w := range strings.Fields(reply) {
		if _, ok := res.run.Vocab.Index(w); !ok {
			t.Fatalf("reply word %q outside vocabulary", w)
		}
	}
}
