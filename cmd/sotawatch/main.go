package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"SOTAWatch/internal/app"
	"SOTAWatch/internal/config"
	"SOTAWatch/internal/logging"
	"SOTAWatch/internal/usecase"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		slog.Error("sotawatch stopped", "error", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "sotawatch",
		Usage: "Daily AI news pipeline: fetch, score, store and notify",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config (defaults to $SOTAWATCH_CONFIG)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the pipeline once",
				Action: runCommand,
			},
			{
				Name:   "schedule",
				Usage:  "Run the pipeline now and then on the configured interval",
				Action: scheduleCommand,
			},
			{
				Name:   "backfill",
				Usage:  "Compute embeddings for stored items that have none",
				Action: backfillCommand,
			},
			{
				Name:   "search",
				Usage:  "Browse high-scoring items or run a semantic search",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Semantic query; browse mode when empty",
					},
					&cli.IntFlag{
						Name:  "min-score",
						Usage: "Minimum score in browse mode (0 uses config)",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Similarity threshold in search mode (negative uses config)",
						Value: usecase.ConfiguredThreshold,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results (0 uses config)",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the read-only HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Create the database schema",
				Action: migrateCommand,
			},
		},
	}
}

type environment struct {
	app    *app.Application
	cfg    config.Config
	logger *slog.Logger
}

func bootstrap(c *cli.Context, overrides ...func(*config.Config)) (*environment, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	for _, override := range overrides {
		override(&cfg)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	application, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &environment{app: application, cfg: cfg, logger: logger}, nil
}

func (e *environment) close() {
	if err := e.app.Close(); err != nil {
		e.logger.Warn("close failed", "error", err)
	}
}

func runCommand(c *cli.Context) error {
	env, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer env.close()

	summary, err := env.app.Run(c.Context)
	if err != nil {
		return err
	}
	if err := summary.Err(); err != nil {
		env.logger.Warn("run finished with errors", "error", err)
	}
	return nil
}

func scheduleCommand(c *cli.Context) error {
	env, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer env.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return env.app.Schedule(ctx)
}

func backfillCommand(c *cli.Context) error {
	env, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer env.close()

	res, err := env.app.Backfill(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "backfill: %d updated, %d failed\n", res.Updated, res.Failed)
	return nil
}

func searchCommand(c *cli.Context) error {
	env, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.app.Migrate(c.Context); err != nil {
		return err
	}

	finder := env.app.Finder()
	out := c.App.Writer
	query := c.String("query")
	if query == "" {
		records, err := finder.Browse(c.Context, c.Int("min-score"), c.Int("limit"))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "no results")
		}
		for _, rec := range records {
			fmt.Fprintf(out, "[%d] %s (%s)\n    %s\n    %s\n", rec.Score, rec.Title, rec.Tags, rec.Summary, rec.URL)
		}
		return nil
	}

	hits, err := finder.Search(c.Context, query, c.Float64("threshold"), c.Int("limit"))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "no results")
	}
	for _, hit := range hits {
		rec := hit.Record
		fmt.Fprintf(out, "%.3f [%d] %s (%s)\n    %s\n    %s\n", hit.Similarity, rec.Score, rec.Title, rec.Tags, rec.Summary, rec.URL)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	env, err := bootstrap(c, func(cfg *config.Config) {
		if addr := c.String("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
	})
	if err != nil {
		return err
	}
	defer env.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return env.app.Serve(ctx)
}

func migrateCommand(c *cli.Context) error {
	env, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.app.Migrate(c.Context); err != nil {
		return err
	}
	env.logger.Info("schema ready", "driver", env.cfg.Database.Driver)
	return nil
}
