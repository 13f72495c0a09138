package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"SOTAWatch/internal/config"
	"SOTAWatch/internal/embedding"
	"SOTAWatch/internal/enrich"
	"SOTAWatch/internal/httpapi"
	"SOTAWatch/internal/infrastructure/feishu"
	"SOTAWatch/internal/infrastructure/llm"
	"SOTAWatch/internal/infrastructure/reader"
	"SOTAWatch/internal/infrastructure/scheduler"
	"SOTAWatch/internal/infrastructure/sources"
	"SOTAWatch/internal/infrastructure/storage"
	"SOTAWatch/internal/infrastructure/telegram"
	"SOTAWatch/internal/logging"
	"SOTAWatch/internal/pacing"
	"SOTAWatch/internal/ports"
	"SOTAWatch/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      storage.Store
	embedder   ports.Embedder
	pipeline   *usecase.Pipeline
	backfiller *usecase.Backfiller
	finder     *usecase.Finder
	closers    []io.Closer
}

// New builds a runnable application instance from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store)

	embedder, err := embedding.New(cfg.Embedding, baseLogger.With("component", "embedding"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedding: %w", err)
	}
	a.embedder = embedder

	reasoner, err := llm.New(ctx, cfg.Reasoner, baseLogger.With("component", "reasoner"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("reasoner: %w", err)
	}
	if c, ok := reasoner.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	expander, cache, err := reader.New(cfg.Reader, baseLogger.With("component", "reader"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("reader: %w", err)
	}
	if cache != nil {
		a.closers = append(a.closers, cache)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	registry := sources.NewRegistry(client, baseLogger.With("component", "scanner"))
	source := sources.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	engine := enrich.NewEngine(enrichConfig(cfg.Enrichment), enrich.Deps{
		Reasoner: reasoner,
		Expander: expander,
		Pacer:    pacing.NewInterval(cfg.Enrichment.Interval),
		Logger:   baseLogger.With("component", "enrich"),
	})

	writer := usecase.NewWriter(store, embedder, cfg.Storage.Retries, cfg.Storage.RetryDelay,
		baseLogger.With("component", "writer"))

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:        source,
		Repository:    store,
		Enricher:      engine,
		Saver:         writer,
		Notifiers:     notifiers(cfg.Notifications, baseLogger),
		MaxCandidates: cfg.Enrichment.MaxCandidates,
		Logger:        baseLogger.With("component", "pipeline"),
	})
	a.backfiller = usecase.NewBackfiller(store, embedder, 0, baseLogger.With("component", "backfill"))
	a.finder = usecase.NewFinder(store, embedder, cfg.Search)

	return a, nil
}

func enrichConfig(e config.EnrichmentConfig) enrich.Config {
	return enrich.Config{
		Threshold:           e.GateThreshold(),
		RequireNoiseVerdict: e.RequireNoiseVerdict != nil && *e.RequireNoiseVerdict,
		DeepRead:            e.DeepRead != nil && *e.DeepRead,
		ExpandTimeout:       e.ExpandTimeout,
		PromptContentLimit:  e.PromptContentLimit,
		SummaryLanguage:     e.SummaryLanguage,
		NoiseKeywords:       e.NoiseKeywords,
	}
}

func notifiers(cfg config.NotificationConfig, logger *slog.Logger) []ports.Notifier {
	var out []ports.Notifier
	if tg := telegram.NewNotifier(cfg.Telegram); tg.Enabled() {
		out = append(out, tg)
	}
	if fs := feishu.NewNotifier(cfg.Feishu.WebhookURL); fs.Enabled() {
		out = append(out, fs)
	}
	if len(out) == 0 {
		logger.Warn("no notifier configured, reports will only be logged")
	}
	return out
}

// Run performs a single pipeline execution for the current day.
// A failed migration is recorded in the summary but does not stop the run.
func (a *Application) Run(ctx context.Context) (usecase.RunSummary, error) {
	migrateErr := a.Migrate(ctx)
	if migrateErr != nil {
		a.logger.Warn("schema migration failed, running without the store", "error", migrateErr)
	}
	now := time.Now().In(a.cfg.Scheduler.Location())
	summary, err := a.pipeline.Run(ctx, now)
	if migrateErr != nil {
		if summary.Errors == nil {
			summary.Errors = map[usecase.Stage]error{}
		}
		summary.Errors[usecase.StageMigrate] = migrateErr
	}
	if err == nil && summary.Notified == 0 && summary.Report != "" && summary.Report != usecase.NoUpdatesReport {
		a.logger.Info("report not delivered", "report", summary.Report)
	}
	return summary, err
}

// Schedule runs the pipeline now and then on the configured interval until
// ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	if err := a.Migrate(ctx); err != nil {
		a.logger.Warn("schema migration failed, scheduling anyway", "error", err)
	}

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval, "timezone", a.cfg.Scheduler.Location())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Backfill repairs rows stored without an embedding.
func (a *Application) Backfill(ctx context.Context) (usecase.BackfillResult, error) {
	if err := a.Migrate(ctx); err != nil {
		return usecase.BackfillResult{}, err
	}
	return a.backfiller.Run(ctx)
}

// Finder exposes browse and semantic search.
func (a *Application) Finder() *usecase.Finder {
	return a.finder
}

// Serve runs the read-only HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.Migrate(ctx); err != nil {
		return err
	}
	router := httpapi.NewRouter(a.finder, a.logger.With("component", "httpapi"))
	return httpapi.Serve(ctx, a.cfg.HTTP.Addr, router, a.logger)
}

// Migrate creates the schema if it does not exist.
func (a *Application) Migrate(ctx context.Context) error {
	if err := a.store.Migrate(ctx, a.embedder.Dimensions()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the store, caches and clients.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
