package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/ports"
)

// Outcome is the terminal state of one item in the engine.
type Outcome int

const (
	OutcomeKept Outcome = iota
	OutcomeNoise
	OutcomeFailed
	OutcomeGated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeKept:
		return "kept"
	case OutcomeNoise:
		return "noise"
	case OutcomeFailed:
		return "failed"
	case OutcomeGated:
		return "gated"
	default:
		return "unknown"
	}
}

// Config parameterizes one engine instance. Provider choice lives in the
// injected Reasoner; everything behavioural lives here.
type Config struct {
	Threshold           int
	RequireNoiseVerdict bool
	DeepRead            bool
	ExpandTimeout       time.Duration
	PromptContentLimit  int
	SummaryLanguage     string
	NoiseKeywords       []string
}

// Deps are the collaborators the engine calls.
type Deps struct {
	Reasoner ports.Reasoner
	Expander ports.ContentExpander
	Pacer    ports.Pacer
	Logger   *slog.Logger
}

// Stats counts outcomes of an EnrichAll run.
type Stats struct {
	Candidates    int
	Kept          int
	DroppedNoise  int
	DroppedFailed int
	DroppedGate   int
}

// Engine turns raw items into enriched items one at a time.
type Engine struct {
	cfg      Config
	gate     Gate
	noise    *NoiseFilter
	reasoner ports.Reasoner
	expander ports.ContentExpander
	pacer    ports.Pacer
	logger   *slog.Logger
}

// NewEngine wires the engine.
func NewEngine(cfg Config, deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		gate:     Gate{Threshold: cfg.Threshold, RequireNoiseVerdict: cfg.RequireNoiseVerdict},
		noise:    NewNoiseFilter(cfg.NoiseKeywords),
		reasoner: deps.Reasoner,
		expander: deps.Expander,
		pacer:    deps.Pacer,
		logger:   logger,
	}
}

// EnrichAll processes items sequentially in input order. Per-item failures
// are logged and counted; only a missing reasoner or a cancelled context
// aborts the run.
func (e *Engine) EnrichAll(ctx context.Context, items []domain.RawItem) ([]domain.EnrichedItem, Stats, error) {
	stats := Stats{Candidates: len(items)}
	if e.reasoner == nil {
		return nil, stats, domain.ErrReasonerUnavailable
	}

	kept := make([]domain.EnrichedItem, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return kept, stats, err
		}

		enriched, outcome, err := e.Enrich(ctx, item)
		switch outcome {
		case OutcomeKept:
			stats.Kept++
			kept = append(kept, enriched)
			e.logger.Info("item kept", "title", item.Title, "score", enriched.Score, "tag", enriched.Tag)
		case OutcomeNoise:
			stats.DroppedNoise++
		case OutcomeGated:
			stats.DroppedGate++
		case OutcomeFailed:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return kept, stats, ctxErr
				}
			}
			stats.DroppedFailed++
			e.logger.Warn("item dropped", "title", item.Title, "error", err)
		}
	}

	return kept, stats, nil
}

// Enrich runs the per-item state machine: noise pre-filter, pacing,
// optional deep read, prompt, reasoning call, parse and quality gate.
func (e *Engine) Enrich(ctx context.Context, item domain.RawItem) (enriched domain.EnrichedItem, outcome Outcome, err error) {
	if kw, hit := e.noise.Match(item.Title); hit {
		e.logger.Debug("noise keyword in title", "title", item.Title, "keyword", kw)
		return domain.EnrichedItem{}, OutcomeNoise, nil
	}

	defer func() {
		if r := recover(); r != nil {
			enriched, outcome, err = domain.EnrichedItem{}, OutcomeFailed, fmt.Errorf("panic: %v", r)
		}
	}()

	if e.reasoner == nil {
		return domain.EnrichedItem{}, OutcomeFailed, domain.ErrReasonerUnavailable
	}

	if e.pacer != nil {
		if err := e.pacer.Wait(ctx); err != nil {
			return domain.EnrichedItem{}, OutcomeFailed, fmt.Errorf("pacing: %w", err)
		}
	}

	prompt := BuildPrompt(item, e.expand(ctx, item), e.cfg.PromptContentLimit, e.cfg.SummaryLanguage)

	reply, err := e.reasoner.Complete(ctx, prompt)
	if err != nil {
		return domain.EnrichedItem{}, OutcomeFailed, fmt.Errorf("reasoner: %w", err)
	}

	analysis, err := ParseAnalysis(reply)
	if err != nil {
		return domain.EnrichedItem{}, OutcomeFailed, err
	}

	if !e.gate.Pass(analysis) {
		e.logger.Debug("below quality gate", "title", item.Title, "score", analysis.Score, "noise", analysis.Noise())
		return domain.EnrichedItem{}, OutcomeGated, nil
	}

	return domain.NewEnrichedItem(item, analysis), OutcomeKept, nil
}

// expand returns deep-read text, falling back to the description.
func (e *Engine) expand(ctx context.Context, item domain.RawItem) string {
	if !e.cfg.DeepRead || e.expander == nil || item.URL == "" {
		return item.Description
	}

	if e.cfg.ExpandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ExpandTimeout)
		defer cancel()
	}

	content := e.expander.Expand(ctx, item.URL)
	if content == "" {
		e.logger.Debug("deep read empty, using description", "url", item.URL)
		return item.Description
	}
	return content
}
