package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"SOTAWatch/internal/config"
	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/ports"
)

// ErrEmptyQuery is returned when a semantic search has no text.
var ErrEmptyQuery = errors.New("empty search query")

// ConfiguredThreshold asks Search to use the configured similarity
// threshold. Any negative value does the same; zero is a real threshold.
const ConfiguredThreshold = -1.0

// Finder serves browse and semantic search over stored records.
type Finder struct {
	repo     ports.ItemRepository
	embedder ports.Embedder
	defaults config.SearchConfig
}

// NewFinder wires the read side. Zero limits and min scores fall back to
// defaults, as does a negative search threshold.
func NewFinder(repo ports.ItemRepository, embedder ports.Embedder, defaults config.SearchConfig) *Finder {
	return &Finder{repo: repo, embedder: embedder, defaults: defaults}
}

// Browse lists records scoring at least minScore, newest first.
func (f *Finder) Browse(ctx context.Context, minScore, limit int) ([]domain.StoredRecord, error) {
	if minScore <= 0 {
		minScore = f.defaults.MinScore
	}
	if limit <= 0 {
		limit = f.defaults.BrowseLimit
	}
	records, err := f.repo.Recent(ctx, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("browse: %w", err)
	}
	return records, nil
}

// Search embeds query and ranks stored records by similarity.
func (f *Finder) Search(ctx context.Context, query string, threshold float64, limit int) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if threshold < 0 {
		threshold = f.defaults.Threshold
	}
	if limit <= 0 {
		limit = f.defaults.Limit
	}

	vec, err := f.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := f.repo.Search(ctx, vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}
