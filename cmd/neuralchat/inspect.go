package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/floats"

	"github.com/samcharles93/neuralchat/internal/modelstore"
)

type inspectOptions struct {
	vocab    int
	asJSON   bool
	matrices bool
}

type matrixSummary struct {
	Name string  `json:"name"`
	Rows int     `json:"rows"`
	Cols int     `json:"cols"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	RMS  float64 `json:"rms"`
}

type inspectReport struct {
	Path       string               `json:"path"`
	HiddenSize int                  `json:"hidden_size"`
	VocabSize  int                  `json:"vocab_size"`
	Manifest   *modelstore.Manifest `json:"manifest,omitempty"`
	Matrices   []matrixSummary      `json:"matrices,omitempty"`
	Vocab      []string             `json:"vocab,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		opts  inspectOptions
		vocab int64
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Show the manifest and weight shapes of a saved model",
		Flags: append(commonModelFlags(),
			&cli.Int64Flag{
				Name:        "vocab",
				Usage:       "print the first N vocabulary entries (-1 for all)",
				Destination: &vocab,
			},
			&cli.BoolFlag{
				Name:        "stats",
				Usage:       "include min/max/mean/rms of every matrix",
				Value:       true,
				Destination: &opts.matrices,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the report as JSON",
				Destination: &opts.asJSON,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelsConfig(cmd, LoadConfig())
			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			b, err := modelstore.Load(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			opts.vocab = int(vocab)
			if err := writeInspectReport(os.Stdout, buildInspectReport(b, opts), opts.asJSON); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

func buildInspectReport(b *modelstore.Bundle, opts inspectOptions) inspectReport {
	r := inspectReport{
		Path:       b.Dir,
		HiddenSize: b.Model.Config.HiddenSize,
		VocabSize:  b.Vocab.Size(),
		Manifest:   b.Manifest,
	}
	for _, name := range []string{"Wf", "Wi", "Wc", "Wo", "Wy"} {
		m, err := b.Matrix(name)
		if err != nil {
			continue
		}
		rows, cols := m.Dims()
		s := matrixSummary{Name: name, Rows: rows, Cols: cols}
		if opts.matrices {
			data := make([]float64, 0, rows*cols)
			for i := 0; i < rows; i++ {
				data = append(data, m.RawRowView(i)...)
			}
			n := float64(len(data))
			s.Min = floats.Min(data)
			s.Max = floats.Max(data)
			s.Mean = floats.Sum(data) / n
			s.RMS = floats.Norm(data, 2) / math.Sqrt(n)
		}
		r.Matrices = append(r.Matrices, s)
	}
	toks := b.Vocab.Tokens()
	switch {
	case opts.vocab < 0:
		r.Vocab = toks
	case opts.vocab > 0:
		r.Vocab = toks[:min(opts.vocab, len(toks))]
	}
	return r
}

func writeInspectReport(w io.Writer, r inspectReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	_, _ = fmt.Fprintf(w, "Model: %s\n", r.Path)
	_, _ = fmt.Fprintf(w, "  hidden size: %d\n", r.HiddenSize)
	_, _ = fmt.Fprintf(w, "  vocab size:  %d\n", r.VocabSize)
	if m := r.Manifest; m != nil {
		_, _ = fmt.Fprintf(w, "  id:          %s\n", m.ID)
		_, _ = fmt.Fprintf(w, "  format:      %s\n", m.Format)
		_, _ = fmt.Fprintf(w, "  learning rate: %g\n", m.LearningRate)
		if m.Epochs > 0 {
			_, _ = fmt.Fprintf(w, "  epochs:      %d (final loss %.2f)\n", m.Epochs, m.FinalLoss)
		}
		if m.Corpus != "" {
			_, _ = fmt.Fprintf(w, "  corpus:      %s\n", m.Corpus)
		}
		if !m.CreatedAt.IsZero() {
			_, _ = fmt.Fprintf(w, "  created:     %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		}
		if m.Version != "" {
			_, _ = fmt.Fprintf(w, "  version:     %s\n", m.Version)
		}
	} else {
		_, _ = fmt.Fprintln(w, "  manifest:    none")
	}

	_, _ = fmt.Fprintln(w, "\nMatrices:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  NAME\tSHAPE\tMIN\tMAX\tMEAN\tRMS")
	for _, m := range r.Matrices {
		_, _ = fmt.Fprintf(tw, "  %s\t%dx%d\t%.4g\t%.4g\t%.4g\t%.4g\n", m.Name, m.Rows, m.Cols, m.Min, m.Max, m.Mean, m.RMS)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Vocab) > 0 {
		_, _ = fmt.Fprintf(w, "\nVocabulary (%d of %d):\n", len(r.Vocab), r.VocabSize)
		for i, tok := range r.Vocab {
			_, _ = fmt.Fprintf(w, "  %6d  %s\n", i, tok)
		}
	}
	return nil
}
