package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"SOTAWatch/internal/ports"
)

const defaultBackfillBatch = 50

// BackfillResult counts repaired and skipped rows.
type BackfillResult struct {
	Updated int
	Failed  int
}

// Backfiller fills in embeddings for rows stored without one.
type Backfiller struct {
	repo      ports.ItemRepository
	embedder  ports.Embedder
	batchSize int
	logger    *slog.Logger
}

// NewBackfiller wires the backfill job.
func NewBackfiller(repo ports.ItemRepository, embedder ports.Embedder, batchSize int, logger *slog.Logger) *Backfiller {
	if batchSize <= 0 {
		batchSize = defaultBackfillBatch
	}
	return &Backfiller{repo: repo, embedder: embedder, batchSize: batchSize, logger: logger}
}

// Run processes batches until none are left or a batch makes no progress.
// Rows that fail stay without a vector and are logged.
func (b *Backfiller) Run(ctx context.Context) (BackfillResult, error) {
	var result BackfillResult
	if b.repo == nil || b.embedder == nil {
		return result, fmt.Errorf("backfill needs a repository and an embedder")
	}

	failed := map[int64]struct{}{}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rows, err := b.repo.MissingEmbeddings(ctx, b.batchSize+len(failed))
		if err != nil {
			return result, fmt.Errorf("load rows without embedding: %w", err)
		}

		progress := 0
		for _, row := range rows {
			if _, skip := failed[row.ID]; skip {
				continue
			}
			vec, err := b.embedder.Embed(ctx, row.BackfillText())
			if err == nil {
				err = b.repo.SetEmbedding(ctx, row.ID, vec)
			}
			if err != nil {
				failed[row.ID] = struct{}{}
				result.Failed++
				b.logger.Warn("backfill failed", "id", row.ID, "url", row.URL, "error", err)
				continue
			}
			result.Updated++
			progress++
		}

		b.logger.Info("backfill batch done", "rows", len(rows), "updated", progress)
		if progress == 0 {
			return result, nil
		}
	}
}
