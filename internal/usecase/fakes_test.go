package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/embedding"
	"SOTAWatch/internal/enrich"
	"SOTAWatch/internal/infrastructure/storage"
	"SOTAWatch/internal/logging"
)

type staticSource struct {
	items []domain.RawItem
	err   error
	calls int
}

func (s *staticSource) FetchAll(context.Context, time.Time) ([]domain.RawItem, error) {
	s.calls++
	return s.items, s.err
}

type titleReasoner struct {
	replies map[string]string
	calls   int
}

func (r *titleReasoner) Complete(_ context.Context, prompt string) (string, error) {
	r.calls++
	for title, reply := range r.replies {
		if strings.Contains(prompt, "Title: "+title+"\n") {
			return reply, nil
		}
	}
	return "not json", nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []string
	err     error
}

func (n *recordingNotifier) Send(_ context.Context, report string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return n.err
}

// flakyRepo wraps a real store and injects failures.
type flakyRepo struct {
	*storage.SQLiteRepository
	existingErr    error
	existingCalls  [][]string
	batchErr       error
	batchCalls     int
	insertErrFor   map[string]error
	insertedViaOne []string
	thresholds     []float64
}

func (f *flakyRepo) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	f.existingCalls = append(f.existingCalls, append([]string(nil), urls...))
	if f.existingErr != nil {
		return nil, f.existingErr
	}
	return f.SQLiteRepository.ExistingURLs(ctx, urls)
}

func (f *flakyRepo) InsertBatch(ctx context.Context, records []domain.StoredRecord) error {
	f.batchCalls++
	if f.batchErr != nil {
		return f.batchErr
	}
	return f.SQLiteRepository.InsertBatch(ctx, records)
}

func (f *flakyRepo) Insert(ctx context.Context, record domain.StoredRecord) error {
	if err := f.insertErrFor[record.URL]; err != nil {
		return err
	}
	f.insertedViaOne = append(f.insertedViaOne, record.URL)
	return f.SQLiteRepository.Insert(ctx, record)
}

func (f *flakyRepo) Search(ctx context.Context, query []float32, threshold float64, limit int) ([]domain.SearchHit, error) {
	f.thresholds = append(f.thresholds, threshold)
	return f.SQLiteRepository.Search(ctx, query, threshold, limit)
}

type failingEmbedder struct {
	dims    int
	failFor string
}

func (e failingEmbedder) Dimensions() int { return e.dims }

func (e failingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.failFor == "" || strings.Contains(text, e.failFor) {
		return nil, errors.New("model offline")
	}
	vec := make([]float32, e.dims)
	vec[0] = 1
	return vec, nil
}

func newStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Migrate(context.Background(), embedding.DefaultDimensions))
	return repo
}

func newHashEmbedder() *embedding.Lazy {
	return embedding.NewLazy(embedding.DefaultDimensions, func() (embedding.Model, error) {
		return embedding.NewHash(embedding.DefaultDimensions), nil
	}, logging.Discard())
}

func newEngine(reasoner *titleReasoner) *enrich.Engine {
	return enrich.NewEngine(enrich.Config{
		Threshold:          6,
		PromptContentLimit: 3000,
		NoiseKeywords:      []string{"tutorial", "learn", "course"},
	}, enrich.Deps{Reasoner: reasoner, Logger: logging.Discard()})
}

func enriched(url, title string, score int) domain.EnrichedItem {
	return domain.NewEnrichedItem(
		domain.RawItem{Source: domain.SourceGitHub, Title: title, URL: url, Description: "d"},
		domain.Analysis{Score: score, Summary: "summary of " + title, Tag: domain.TagLLM},
	)
}
