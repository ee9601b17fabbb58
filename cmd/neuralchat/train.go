package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/neuralchat/internal/logger"
	"github.com/samcharles93/neuralchat/internal/model"
	"github.com/samcharles93/neuralchat/internal/modelstore"
	"github.com/samcharles93/neuralchat/internal/training"
)

type trainOptions struct {
	corpusPath   string
	hidden       int64
	learningRate float64
	epochs       int64
	seed         int64
}

type trainOutput struct {
	run    *training.Run
	epochs []training.EpochStats
	seed   int64
}

func (o trainOutput) finalLoss() float64 {
	if len(o.epochs) == 0 {
		return 0
	}
	return o.epochs[len(o.epochs)-1].Loss
}

func trainCmd() *cli.Command {
	var (
		opts    trainOptions
		outDir  string
		profile profileFlags
	)

	return &cli.Command{
		Name:  "train",
		Usage: "Train a model on a text corpus and save it",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "corpus",
				Aliases:     []string{"c"},
				Usage:       "path to the training corpus (plain text)",
				Required:    true,
				Destination: &opts.corpusPath,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "directory to write the trained model to",
				Required:    true,
				Destination: &outDir,
			},
			&cli.Int64Flag{
				Name:        "hidden",
				Usage:       "hidden state size",
				Value:       defaultHidden,
				Destination: &opts.hidden,
			},
			&cli.Float64Flag{
				Name:        "lr",
				Usage:       "SGD learning rate",
				Value:       defaultLearningRate,
				Destination: &opts.learningRate,
			},
			&cli.Int64Flag{
				Name:        "epochs",
				Usage:       "number of passes over the corpus",
				Value:       defaultEpochs,
				Destination: &opts.epochs,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "weight initialisation seed (-1 for time-based)",
				Value:       -1,
				Destination: &opts.seed,
			},
		}, profile.flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyTrainConfig(cmd, LoadConfig(), &opts.hidden, &opts.learningRate, &opts.epochs, &opts.seed)

			stop, err := profile.start()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer stop()

			res, err := trainFromCorpus(ctx, opts, os.Stdout)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			man := modelstore.Manifest{
				Epochs:    int(opts.epochs),
				FinalLoss: res.finalLoss(),
				Corpus:    filepath.Base(opts.corpusPath),
			}
			if err := modelstore.Save(outDir, res.run.Model, res.run.Vocab, man); err != nil {
				return cli.Exit(fmt.Sprintf("error: save model: %v", err), 1)
			}
			logger.FromContext(ctx).Info("model saved",
				"path", outDir,
				"vocab", res.run.Vocab.Size(),
				"hidden", res.run.Model.Config.HiddenSize,
				"seed", res.seed,
			)
			return nil
		},
	}
}

// trainFromCorpus reads the corpus, builds a fresh model sized to its
// vocabulary and trains it, printing one "Epoch N Loss: X" line per epoch
// to out.
func trainFromCorpus(ctx context.Context, opts trainOptions, out io.Writer) (trainOutput, error) {
	if strings.TrimSpace(opts.corpusPath) == "" {
		return trainOutput{}, fmt.Errorf("corpus path is required")
	}
	if opts.epochs < 0 {
		return trainOutput{}, fmt.Errorf("epochs must be >= 0, got %d", opts.epochs)
	}
	data, err := os.ReadFile(opts.corpusPath)
	if err != nil {
		return trainOutput{}, fmt.Errorf("read corpus: %w", err)
	}

	seed := opts.seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	cfg := model.Config{HiddenSize: int(opts.hidden), LearningRate: opts.learningRate}
	run, err := training.Prepare(string(data), cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		return trainOutput{}, err
	}

	log := logger.FromContext(ctx)
	log.Debug("training", "tokens", len(run.Tokens), "vocab", run.Vocab.Size(), "hidden", cfg.HiddenSize, "seed", seed)

	tr := &training.Trainer{
		Model:  run.Model,
		Logger: log,
		OnEpoch: func(es training.EpochStats) {
			_, _ = fmt.Fprintf(out, "Epoch %d Loss: %.2f\n", es.Epoch, es.Loss)
		},
	}
	stats, err := tr.Train(ctx, run.Tokens, int(opts.epochs))
	if err != nil {
		return trainOutput{}, err
	}
	return trainOutput{run: run, epochs: stats, seed: seed}, nil
}
