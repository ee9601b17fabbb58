package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/neuralchat/internal/api"
	"github.com/samcharles93/neuralchat/internal/inference"
	"github.com/samcharles93/neuralchat/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		rps         float64
		burst       int64
		length      int64
		seed        int64
		storeSize   int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation REST API",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Float64Flag{
				Name:        "rate",
				Usage:       "requests per second allowed across all clients (0 disables)",
				Value:       10,
				Destination: &rps,
			},
			&cli.Int64Flag{
				Name:        "burst",
				Usage:       "request burst size for the rate limiter",
				Value:       20,
				Destination: &burst,
			},
			&cli.Int64Flag{
				Name:        "length",
				Usage:       "default number of tokens per request",
				Value:       defaultLength,
				Destination: &length,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "default sampling seed (-1 for time-based)",
				Value:       -1,
				Destination: &seed,
			},
			&cli.Int64Flag{
				Name:        "store-size",
				Usage:       "number of generations kept for GET /v1/generate/:id",
				Value:       api.DefaultStoreCapacity,
				Destination: &storeSize,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyServeConfig(cmd, cfg, &addr, &rps)
			if cfg.Length != nil && !cmd.IsSet("length") {
				length = *cfg.Length
			}
			if cfg.Seed != nil && !cmd.IsSet("seed") {
				seed = *cfg.Seed
			}
			log := logger.FromContext(ctx)

			n := int(length)
			provider := api.NewCachedEngineProvider(api.EngineProviderConfig{
				DefaultModelPath: modelPath,
				ModelsPath:       modelsPath,
				Loader:           inference.Loader{Length: &n, Seed: &seed},
			})
			defer func() { _ = provider.Close() }()

			server := api.NewServer(provider, api.NewGenerationStore(int(storeSize)))
			e := echo.New()
			e.JSONSerializer = api.JSONSerializer{}
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			e.Use(api.RateLimit(rps, int(burst)))
			server.Register(e)

			log.Info("starting server", "address", addr, "rate", rps)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
