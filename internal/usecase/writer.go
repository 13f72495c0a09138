package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/ports"
	"SOTAWatch/internal/retry"
)

// SaveResult counts what happened to each qualifying item.
type SaveResult struct {
	Inserted   int
	Duplicates int
	Failed     int
}

// Writer persists enriched items together with their embeddings.
type Writer struct {
	repo       ports.ItemRepository
	embedder   ports.Embedder
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewWriter builds the store write path. retries below one means one attempt.
func NewWriter(repo ports.ItemRepository, embedder ports.Embedder, retries int, retryDelay time.Duration, logger *slog.Logger) *Writer {
	if retries < 1 {
		retries = 1
	}
	return &Writer{
		repo:       repo,
		embedder:   embedder,
		retries:    retries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Save embeds every item and inserts the rows in one batch, retried with
// backoff. A batch that still fails is replayed row by row so that one bad
// or duplicate row cannot sink the rest.
func (w *Writer) Save(ctx context.Context, items []domain.EnrichedItem) (SaveResult, error) {
	if len(items) == 0 {
		return SaveResult{}, nil
	}
	if w.repo == nil {
		return SaveResult{Failed: len(items)}, fmt.Errorf("no repository configured")
	}

	records := make([]domain.StoredRecord, 0, len(items))
	for _, item := range items {
		records = append(records, domain.NewStoredRecord(item, w.embed(ctx, item)))
	}

	batchErr := retry.WithBackoff(ctx, func() error {
		err := w.repo.InsertBatch(ctx, records)
		if errors.Is(err, domain.ErrDuplicateURL) {
			return &retry.Permanent{Err: err}
		}
		return err
	}, w.retries, w.retryDelay)
	if batchErr == nil {
		return SaveResult{Inserted: len(records)}, nil
	}
	if ctx.Err() != nil {
		return SaveResult{Failed: len(records)}, fmt.Errorf("insert batch: %w", batchErr)
	}

	w.logger.Warn("batch insert failed, inserting rows one by one", "rows", len(records), "error", batchErr)

	var (
		result  SaveResult
		lastErr error
	)
	for _, record := range records {
		err := w.repo.Insert(ctx, record)
		switch {
		case err == nil:
			result.Inserted++
		case errors.Is(err, domain.ErrDuplicateURL):
			result.Duplicates++
			w.logger.Info("already recorded", "url", record.URL)
		default:
			result.Failed++
			lastErr = err
			w.logger.Error("insert failed", "url", record.URL, "error", err)
		}
	}

	if result.Failed > 0 {
		return result, fmt.Errorf("%d of %d rows not saved: %w", result.Failed, len(records), lastErr)
	}
	return result, nil
}

// embed returns nil on failure; the row is stored without a vector and
// picked up later by the backfill.
func (w *Writer) embed(ctx context.Context, item domain.EnrichedItem) []float32 {
	if w.embedder == nil {
		return nil
	}
	vec, err := w.embedder.Embed(ctx, item.EmbeddingText())
	if err != nil {
		w.logger.Warn("embedding failed, storing without vector", "url", item.URL, "error", err)
		return nil
	}
	return vec
}
