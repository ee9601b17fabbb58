package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/urfave/cli/v3"
)

var (
	modelPath  string
	modelsPath string
	logLevel   string
	logFormat  string
	debug      bool
)

// Defaults of the reference training recipe.
const (
	defaultHidden       = 256
	defaultLearningRate = 0.7
	defaultEpochs       = 2
	defaultLength       = 64
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to a saved model directory",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory containing saved models",
			Sources:     cli.EnvVars(envModelsDir),
			Destination: &modelsPath,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

type profileFlags struct {
	cpu string
	mem string
}

func (p *profileFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cpuprofile",
			Usage:       "write cpu profile to file",
			Destination: &p.cpu,
		},
		&cli.StringFlag{
			Name:        "memprofile",
			Usage:       "write memory profile to file",
			Destination: &p.mem,
		},
	}
}

// start begins CPU profiling if requested. The returned function stops it
// and writes the heap profile.
func (p *profileFlags) start() (func(), error) {
	stop := func() {}
	if p.cpu != "" {
		f, err := os.Create(p.cpu)
		if err != nil {
			return nil, fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("could not start CPU profile: %w", err)
		}
		stop = func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}
	}
	if p.mem == "" {
		return stop, nil
	}
	return func() {
		stop()
		f, err := os.Create(p.mem)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.WriteHeapProfile(f); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
		}
	}, nil
}
