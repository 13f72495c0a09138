package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/enrich"
	"SOTAWatch/internal/ports"
)

// Stage names a pipeline step in logs and run summaries.
type Stage string

const (
	StageMigrate Stage = "migrate"
	StageFetch   Stage = "fetch"
	StageDedup   Stage = "dedup"
	StageEnrich  Stage = "enrich"
	StageSave    Stage = "save"
	StageNotify  Stage = "notify"
)

// Enricher is the enrichment engine as seen by the pipeline.
type Enricher interface {
	EnrichAll(ctx context.Context, items []domain.RawItem) ([]domain.EnrichedItem, enrich.Stats, error)
}

// Saver is the store write path as seen by the pipeline.
type Saver interface {
	Save(ctx context.Context, items []domain.EnrichedItem) (SaveResult, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source        ports.ItemSource
	Repository    ports.ItemRepository
	Enricher      Enricher
	Saver         Saver
	Notifiers     []ports.Notifier
	MaxCandidates int
	Logger        *slog.Logger
}

// RunSummary records counts and stage errors of one run.
type RunSummary struct {
	Fetched    int
	New        int
	Candidates int
	Enrich     enrich.Stats
	Saved      SaveResult
	Report     string
	Notified   int
	Errors     map[Stage]error
}

// Err joins all stage errors.
func (s RunSummary) Err() error {
	errs := make([]error, 0, len(s.Errors))
	for _, stage := range []Stage{StageMigrate, StageFetch, StageDedup, StageEnrich, StageSave, StageNotify} {
		if err, ok := s.Errors[stage]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", stage, err))
		}
	}
	return errors.Join(errs...)
}

// Pipeline implements the daily ingestion workflow:
// fetch, dedup, enrich, save, report and notify.
type Pipeline struct {
	source        ports.ItemSource
	repository    ports.ItemRepository
	enricher      Enricher
	saver         Saver
	notifiers     []ports.Notifier
	maxCandidates int
	logger        *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:        deps.Source,
		repository:    deps.Repository,
		enricher:      deps.Enricher,
		saver:         deps.Saver,
		notifiers:     deps.Notifiers,
		maxCandidates: deps.MaxCandidates,
		logger:        logger,
	}
}

// Run executes one pass for day. Fetch and enrich failures end the run and
// are returned; failures of later stages are logged, kept in the summary and
// do not stop the notification step.
func (p *Pipeline) Run(ctx context.Context, day time.Time) (RunSummary, error) {
	summary := RunSummary{Errors: map[Stage]error{}}
	p.logger.Info("pipeline started", "day", day.Format(time.DateOnly))

	var raw []domain.RawItem
	if err := p.guard(StageFetch, func() error {
		if p.source == nil {
			return fmt.Errorf("no source configured")
		}
		var err error
		raw, err = p.source.FetchAll(ctx, day)
		return err
	}); err != nil {
		return p.fail(summary, StageFetch, err)
	}
	summary.Fetched = len(raw)
	p.logger.Info("fetch finished", "fetched", summary.Fetched)
	if len(raw) == 0 {
		p.logger.Warn("no data fetched, stopping")
		return summary, nil
	}

	fresh := raw
	if err := p.guard(StageDedup, func() error {
		fresh = FilterNew(ctx, p.repository, raw, p.logger)
		return nil
	}); err != nil {
		summary.Errors[StageDedup] = err
		p.logger.Error("stage failed", "stage", StageDedup, "error", err)
		fresh = raw
	}
	summary.New = len(fresh)
	p.logger.Info("dedup finished", "fetched", summary.Fetched, "new", summary.New)
	if len(fresh) == 0 {
		p.logger.Info("nothing new, stopping")
		return summary, nil
	}

	candidates := fresh
	if p.maxCandidates > 0 && len(candidates) > p.maxCandidates {
		candidates = candidates[:p.maxCandidates]
	}
	summary.Candidates = len(candidates)

	var kept []domain.EnrichedItem
	if err := p.guard(StageEnrich, func() error {
		if p.enricher == nil {
			return domain.ErrReasonerUnavailable
		}
		var err error
		kept, summary.Enrich, err = p.enricher.EnrichAll(ctx, candidates)
		return err
	}); err != nil {
		return p.fail(summary, StageEnrich, err)
	}
	p.logger.Info("enrich finished",
		"candidates", summary.Candidates,
		"kept", summary.Enrich.Kept,
		"dropped_noise", summary.Enrich.DroppedNoise,
		"dropped_failed", summary.Enrich.DroppedFailed,
		"dropped_gate", summary.Enrich.DroppedGate,
	)

	if len(kept) > 0 && p.saver != nil {
		if err := p.guard(StageSave, func() error {
			var err error
			summary.Saved, err = p.saver.Save(ctx, kept)
			return err
		}); err != nil {
			summary.Errors[StageSave] = err
			p.logger.Error("stage failed", "stage", StageSave, "error", err)
		}
		p.logger.Info("save finished",
			"inserted", summary.Saved.Inserted,
			"duplicates", summary.Saved.Duplicates,
			"failed", summary.Saved.Failed,
		)
	}

	summary.Report = BuildReport(kept)
	if !ShouldNotify(kept, summary.Report) {
		p.logger.Info("report is empty, skipping notification")
		return summary, nil
	}

	var notifyErrs []error
	for _, n := range p.notifiers {
		if err := p.guard(StageNotify, func() error { return n.Send(ctx, summary.Report) }); err != nil {
			notifyErrs = append(notifyErrs, err)
			p.logger.Error("notification failed", "notifier", fmt.Sprintf("%T", n), "error", err)
			continue
		}
		summary.Notified++
	}
	if len(notifyErrs) > 0 {
		summary.Errors[StageNotify] = errors.Join(notifyErrs...)
	}

	p.logger.Info("pipeline completed", "kept", len(kept), "notified", summary.Notified)
	return summary, nil
}

func (p *Pipeline) fail(summary RunSummary, stage Stage, err error) (RunSummary, error) {
	summary.Errors[stage] = err
	p.logger.Error("stage failed, stopping", "stage", stage, "error", err)
	return summary, fmt.Errorf("%s stage: %w", stage, err)
}

// guard runs fn and converts a panic into an error.
func (p *Pipeline) guard(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s stage panicked: %v", stage, r)
		}
	}()
	return fn()
}
