package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/neuralchat/internal/inference"
	"github.com/samcharles93/neuralchat/internal/logger"
)

func generateCmd() *cli.Command {
	var (
		prompt string
		length int64
		seed   int64
		greedy bool
		echo   bool
		quiet  bool
	)

	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate text from a saved model",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt text used to seed the hidden state",
				Destination: &prompt,
			},
			&cli.Int64Flag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "number of tokens to generate",
				Value:       defaultLength,
				Destination: &length,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling seed (-1 for time-based)",
				Value:       -1,
				Destination: &seed,
			},
			&cli.BoolFlag{
				Name:        "greedy",
				Usage:       "always pick the most probable token",
				Destination: &greedy,
			},
			&cli.BoolFlag{
				Name:        "echo",
				Usage:       "print the prompt before the generated text",
				Destination: &echo,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "suppress generation stats",
				Destination: &quiet,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyGenerateConfig(cmd, LoadConfig(), &length, &seed)
			log := logger.FromContext(ctx)

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			loaded, err := inference.Loader{}.Load(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			defer func() { _ = loaded.Engine.Close() }()
			log.Debug("model loaded", "path", path, "vocab", loaded.Bundle.Vocab.Size(), "hidden", loaded.Bundle.Model.Config.HiddenSize)

			n := int(length)
			opts := inference.RequestOptions{
				Prompt:     prompt,
				Length:     &n,
				Seed:       &seed,
				Greedy:     &greedy,
				EchoPrompt: &echo,
			}
			req := inference.ResolveRequest(opts, loaded.GenerationDefaults)

			echoing := echo && req.Prompt != ""
			res, err := loaded.Engine.Generate(ctx, &req, func(piece string) {
				fmt.Print(piece)
				if echoing {
					// The first generated piece carries no leading separator.
					echoing = false
					if req.Length > 0 {
						fmt.Print(" ")
					}
				}
			})
			fmt.Println()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
			}
			if !quiet {
				printStats(os.Stderr, res.Stats)
			}
			return nil
		},
	}
}

func printStats(w io.Writer, st inference.Stats) {
	_, _ = fmt.Fprintf(w, "\nStats:\n  Prompt tokens: %d\n  Generated tokens: %d\n  Duration: %s\n  TPS: %.2f\n",
		st.PromptTokens, st.TokensGenerated, st.Duration.Round(time.Millisecond), st.TPS)
}
