package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/enrich"
	"SOTAWatch/internal/logging"
	"SOTAWatch/internal/ports"
)

var runDay = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

type failingSaver struct{ err error }

func (f failingSaver) Save(context.Context, []domain.EnrichedItem) (SaveResult, error) {
	return SaveResult{}, f.err
}

type panickingEnricher struct{}

func (panickingEnricher) EnrichAll(context.Context, []domain.RawItem) ([]domain.EnrichedItem, enrich.Stats, error) {
	panic("engine exploded")
}

func scenarioItems() []domain.RawItem {
	return []domain.RawItem{
		{URL: "https://x/1", Title: "Tutorial: Learn LLMs", Source: domain.SourceGitHub, Description: "d"},
		{URL: "https://x/2", Title: "NewModel-7B release", Source: domain.SourceGitHub, Description: "SOTA weights"},
	}
}

func scenarioReasoner() *titleReasoner {
	return &titleReasoner{replies: map[string]string{
		"NewModel-7B release": `{"score":9,"summary":"发布新模型","tag":"LLM"}`,
	}}
}

func TestPipelineEndToEndScenario(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	reasoner := scenarioReasoner()
	notifier := &recordingNotifier{}

	p := NewPipeline(PipelineDeps{
		Source:     &staticSource{items: scenarioItems()},
		Repository: store,
		Enricher:   newEngine(reasoner),
		Saver:      NewWriter(store, newHashEmbedder(), 1, 0, logging.Discard()),
		Notifiers:  []ports.Notifier{notifier},
		Logger:     logging.Discard(),
	})

	summary, err := p.Run(context.Background(), runDay)
	require.NoError(t, err)
	assert.NoError(t, summary.Err())
	assert.Equal(t, 1, reasoner.calls, "tutorial item must not reach the reasoner")
	assert.Equal(t, 1, summary.Enrich.DroppedNoise)
	assert.Equal(t, SaveResult{Inserted: 1}, summary.Saved)

	records, err := store.Recent(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "https://x/2", rec.URL)
	assert.Equal(t, "LLM", rec.Tags)
	assert.Equal(t, 9, rec.Score)

	want, err := newHashEmbedder().Embed(context.Background(), "NewModel-7B release 发布新模型 LLM")
	require.NoError(t, err)
	require.Len(t, want, 384)
	assert.NotEqual(t, make([]float32, 384), want)

	hits, err := store.Search(context.Background(), want, 0.999, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://x/2", hits[0].Record.URL)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)

	require.Len(t, notifier.reports, 1)
	assert.Contains(t, notifier.reports[0], "NewModel-7B release")
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	reasoner := scenarioReasoner()
	notifier := &recordingNotifier{}
	source := &staticSource{items: scenarioItems()}

	p := NewPipeline(PipelineDeps{
		Source:     source,
		Repository: store,
		Enricher:   newEngine(reasoner),
		Saver:      NewWriter(store, newHashEmbedder(), 1, 0, logging.Discard()),
		Notifiers:  []ports.Notifier{notifier},
		Logger:     logging.Discard(),
	})

	_, err := p.Run(context.Background(), runDay)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), runDay)
	require.NoError(t, err)

	// The tutorial item was never stored, so only it survives dedup and the
	// pre-filter drops it again.
	assert.Equal(t, 1, second.New)
	assert.Equal(t, 0, second.Enrich.Kept)
	assert.Equal(t, 1, reasoner.calls)
	assert.Len(t, notifier.reports, 1)

	records, err := store.Recent(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPipelineStorageFailureStillNotifies(t *testing.T) {
	t.Parallel()
	notifier := &recordingNotifier{}

	p := NewPipeline(PipelineDeps{
		Source:    &staticSource{items: scenarioItems()},
		Enricher:  newEngine(scenarioReasoner()),
		Saver:     failingSaver{err: errors.New("store down")},
		Notifiers: []ports.Notifier{notifier},
		Logger:    logging.Discard(),
	})

	summary, err := p.Run(context.Background(), runDay)
	require.NoError(t, err)
	assert.Error(t, summary.Errors[StageSave])
	assert.Len(t, notifier.reports, 1)
	assert.Equal(t, 1, summary.Notified)
}

func TestPipelineFetchFailureIsFatal(t *testing.T) {
	t.Parallel()
	reasoner := scenarioReasoner()

	p := NewPipeline(PipelineDeps{
		Source:   &staticSource{err: errors.New("dns")},
		Enricher: newEngine(reasoner),
		Logger:   logging.Discard(),
	})

	summary, err := p.Run(context.Background(), runDay)
	require.Error(t, err)
	assert.Contains(t, summary.Errors, StageFetch)
	assert.Zero(t, reasoner.calls)
}

func TestPipelineRecoversEnrichPanic(t *testing.T) {
	t.Parallel()
	notifier := &recordingNotifier{}

	p := NewPipeline(PipelineDeps{
		Source:    &staticSource{items: scenarioItems()},
		Enricher:  panickingEnricher{},
		Notifiers: []ports.Notifier{notifier},
		Logger:    logging.Discard(),
	})

	_, err := p.Run(context.Background(), runDay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Empty(t, notifier.reports)
}

func TestPipelineStopsOnEmptyFetch(t *testing.T) {
	t.Parallel()
	reasoner := scenarioReasoner()

	p := NewPipeline(PipelineDeps{
		Source:   &staticSource{},
		Enricher: newEngine(reasoner),
		Logger:   logging.Discard(),
	})

	summary, err := p.Run(context.Background(), runDay)
	require.NoError(t, err)
	assert.Zero(t, summary.Fetched)
	assert.Zero(t, reasoner.calls)
}

func TestPipelineCapsCandidatesInOrder(t *testing.T) {
	t.Parallel()
	reasoner := &titleReasoner{}
	items := []domain.RawItem{
		{URL: "https://x/a", Title: "A"},
		{URL: "https://x/b", Title: "B"},
		{URL: "https://x/c", Title: "C"},
	}

	p := NewPipeline(PipelineDeps{
		Source:        &staticSource{items: items},
		Enricher:      newEngine(reasoner),
		MaxCandidates: 2,
		Logger:        logging.Discard(),
	})

	summary, err := p.Run(context.Background(), runDay)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.New)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 2, reasoner.calls)
}

func TestPipelineSkipsNotificationWhenNothingQualifies(t *testing.T) {
	t.Parallel()
	notifier := &recordingNotifier{}
	reasoner := &titleReasoner{replies: map[string]string{
		"Minor fix": `{"score":3,"summary":"s","tag":"Tool"}`,
	}}

	p := NewPipeline(PipelineDeps{
		Source:    &staticSource{items: []domain.RawItem{{URL: "https://x/9", Title: "Minor fix"}}},
		Enricher:  newEngine(reasoner),
		Notifiers: []ports.Notifier{notifier},
		Logger:    logging.Discard(),
	})

	summary, err := p.Run(context.Background(), runDay)
	require.NoError(t, err)
	assert.Equal(t, NoUpdatesReport, summary.Report)
	assert.Equal(t, 1, summary.Enrich.DroppedGate)
	assert.Empty(t, notifier.reports)
}

func TestPipelineNotifierFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	broken := &recordingNotifier{err: errors.New("403")}
	healthy := &recordingNotifier{}

	p := NewPipeline(PipelineDeps{
		Source:    &staticSource{items: scenarioItems()},
		Enricher:  newEngine(scenarioReasoner()),
		Notifiers: []ports.Notifier{broken, healthy},
		Logger:    logging.Discard(),
	})

	summary, err := p.Run(context.Background(), runDay)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)
	assert.Len(t, healthy.reports, 1)
	assert.Error(t, summary.Err())
}

func TestPipelineWithoutReasonerFails(t *testing.T) {
	t.Parallel()
	p := NewPipeline(PipelineDeps{
		Source:   &staticSource{items: scenarioItems()},
		Enricher: enrich.NewEngine(enrich.Config{Threshold: 6}, enrich.Deps{Logger: logging.Discard()}),
		Logger:   logging.Discard(),
	})

	_, err := p.Run(context.Background(), runDay)
	assert.ErrorIs(t, err, domain.ErrReasonerUnavailable)
}
