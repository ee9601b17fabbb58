package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/neuralchat/internal/inference"
	"github.com/samcharles93/neuralchat/internal/logger"
	"github.com/samcharles93/neuralchat/internal/logits"
	"github.com/samcharles93/neuralchat/internal/modelstore"
)

const (
	userPrompt = "You: "
	botPrefix  = "Bot: "
	exitWord   = "exit"
)

// lineSource yields one line of user input per call. io.EOF ends the
// conversation.
type lineSource interface {
	ReadLine(prompt string) (string, error)
}

type terminalLines struct{}

func (terminalLines) ReadLine(prompt string) (string, error) {
	return readInteractiveLine(prompt)
}

func chatCmd() *cli.Command {
	var (
		corpusPath string
		saveDir    string
		length     int64
		seed       int64
		greedy     bool
		train      = trainOptions{
			hidden:       defaultHidden,
			learningRate: defaultLearningRate,
			epochs:       defaultEpochs,
			seed:         -1,
		}
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with a model in the terminal",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "corpus",
				Aliases:     []string{"c"},
				Usage:       "train a fresh model on this corpus before chatting",
				Destination: &corpusPath,
			},
			&cli.StringFlag{
				Name:        "save",
				Usage:       "directory to save the model trained from --corpus",
				Destination: &saveDir,
			},
			&cli.Int64Flag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "number of tokens per reply",
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
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyGenerateConfig(cmd, cfg, &length, &seed)
			log := logger.FromContext(ctx)

			var engine *inference.LocalEngine
			if strings.TrimSpace(corpusPath) != "" && strings.TrimSpace(modelPath) == "" {
				train.corpusPath = corpusPath
				applyCorpusTrainConfig(cfg, &train)
				res, err := trainFromCorpus(ctx, train, os.Stdout)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				if saveDir != "" {
					man := modelstore.Manifest{Epochs: int(train.epochs), FinalLoss: res.finalLoss(), Corpus: corpusPath}
					if err := modelstore.Save(saveDir, res.run.Model, res.run.Vocab, man); err != nil {
						return cli.Exit(fmt.Sprintf("error: save model: %v", err), 1)
					}
					log.Info("model saved", "path", saveDir)
				}
				if engine, err = inference.NewEngine(res.run.Model, res.run.Vocab); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			} else {
				path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				loaded, err := inference.Loader{}.Load(path)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
				}
				engine = loaded.Engine
			}
			defer func() { _ = engine.Close() }()

			n := int(length)
			opts := inference.RequestOptions{Length: &n, Seed: &seed, Greedy: &greedy}
			if err := chatLoop(ctx, engine, opts, terminalLines{}, os.Stdout); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

// applyCorpusTrainConfig fills the in-memory training recipe from the config
// file. chat exposes no training flags, so the file always applies.
func applyCorpusTrainConfig(cfg Config, opts *trainOptions) {
	if cfg.Hidden != nil {
		opts.hidden = *cfg.Hidden
	}
	if cfg.LearningRate != nil {
		opts.learningRate = *cfg.LearningRate
	}
	if cfg.Epochs != nil {
		opts.epochs = *cfg.Epochs
	}
	if cfg.Seed != nil {
		opts.seed = *cfg.Seed
	}
}

// chatLoop prompts for a line, replies with a generated continuation and
// repeats until the user types "exit" (any case) or input ends. All replies
// draw from one sampler seeded once per session.
func chatLoop(ctx context.Context, engine inference.Engine, opts inference.RequestOptions, in lineSource, out io.Writer) error {
	seed := int64(-1)
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	sampler := logits.NewSampler(logits.SamplerConfig{Seed: seed})

	_, _ = fmt.Fprintln(out, "Chat Bot Initialized. Type 'exit' to quit.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := in.ReadLine(userPrompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if strings.EqualFold(strings.TrimSpace(line), exitWord) {
			return nil
		}

		turn := opts
		turn.Prompt = line
		req := inference.ResolveRequest(turn, inference.GenDefaults{})
		req.Sampler = sampler
		_, _ = fmt.Fprint(out, botPrefix)
		_, err = engine.Generate(ctx, &req, func(piece string) {
			_, _ = fmt.Fprint(out, piece)
		})
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("generate reply: %w", err)
		}
	}
}
