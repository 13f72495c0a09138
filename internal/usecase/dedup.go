package usecase

import (
	"context"
	"log/slog"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/ports"
)

// FilterNew drops items whose URL is already recorded. The store is asked
// once for the whole batch. When the lookup fails every item is treated as
// new.
func FilterNew(ctx context.Context, repo ports.ItemRepository, items []domain.RawItem, logger *slog.Logger) []domain.RawItem {
	if repo == nil || len(items) == 0 {
		return items
	}

	urls := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.URL]; ok || item.URL == "" {
			continue
		}
		seen[item.URL] = struct{}{}
		urls = append(urls, item.URL)
	}

	existing, err := repo.ExistingURLs(ctx, urls)
	if err != nil {
		logger.Warn("dedup lookup failed, treating all items as new", "items", len(items), "error", err)
		return items
	}

	fresh := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if _, ok := existing[item.URL]; ok {
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh
}
