package ports

import (
	"context"
	"time"

	"SOTAWatch/internal/domain"
)

// ItemSource pulls fresh raw items from all configured upstream providers.
type ItemSource interface {
	FetchAll(ctx context.Context, day time.Time) ([]domain.RawItem, error)
}

// ContentExpander turns a URL into bounded readable text. It returns an empty
// string on any failure.
type ContentExpander interface {
	Expand(ctx context.Context, url string) string
}

// Reasoner sends a prompt to a language model and returns its raw reply.
type Reasoner interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ItemRepository persists stored records keyed by URL.
type ItemRepository interface {
	ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	InsertBatch(ctx context.Context, records []domain.StoredRecord) error
	Insert(ctx context.Context, record domain.StoredRecord) error
	Search(ctx context.Context, query []float32, threshold float64, limit int) ([]domain.SearchHit, error)
	Recent(ctx context.Context, minScore, limit int) ([]domain.StoredRecord, error)
	MissingEmbeddings(ctx context.Context, limit int) ([]domain.StoredRecord, error)
	SetEmbedding(ctx context.Context, id int64, embedding []float32) error
}

// Notifier delivers the daily report to an outbound channel.
type Notifier interface {
	Send(ctx context.Context, report string) error
}

// Pacer blocks until the next rate-limited call may proceed.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
