package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"SOTAWatch/internal/config"
	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/ports"
	"SOTAWatch/internal/scanner"
)

const defaultFetchWorkers = 4

// StrategySource implements ItemSource via registered scanner strategies.
// Sites are scanned concurrently; a failing site contributes nothing.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
	workers  int
}

var _ ports.ItemSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   orDiscard(log),
		workers:  defaultFetchWorkers,
	}
}

// FetchAll runs every configured site and merges results in site order,
// keeping the first item seen for each URL and dropping items without one.
func (s *StrategySource) FetchAll(ctx context.Context, day time.Time) ([]domain.RawItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.logger.Debug("fetch all", "sites", len(s.sites), "day", day.Format("2006-01-02"))

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("fetch pool: %w", err)
	}
	defer pool.Release()

	perSite := make([][]domain.RawItem, len(s.sites))
	var wg sync.WaitGroup
	for i, site := range s.sites {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			perSite[i] = s.scanSite(ctx, day, site)
		}
		if err := pool.Submit(task); err != nil {
			s.logger.Warn("submit scan failed, running inline", "site", site.Name, "error", err)
			task()
		}
	}
	wg.Wait()

	var merged []domain.RawItem
	seen := make(map[string]struct{})
	for _, items := range perSite {
		for _, item := range items {
			if item.URL == "" {
				continue
			}
			if _, dup := seen[item.URL]; dup {
				continue
			}
			seen[item.URL] = struct{}{}
			merged = append(merged, item)
		}
	}

	s.logger.Debug("strategy source done", "total_items", len(merged))
	return merged, nil
}

func (s *StrategySource) scanSite(ctx context.Context, day time.Time, site config.SiteConfig) (items []domain.RawItem) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scanner panicked", "site", site.Name, "panic", r)
			items = nil
		}
	}()

	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		s.logger.Warn("site skipped", "site", site.Name, "error", err)
		return nil
	}

	req := scanner.Request{
		Day:        day,
		SiteName:   site.Name,
		Options:    site.Options,
		Categories: toScannerCategories(site.Categories),
	}

	results, err := strategy.Scan(ctx, req)
	if err != nil {
		s.logger.Warn("site failed", "site", site.Name, "scanner", site.Scanner, "error", err)
		return nil
	}

	s.logger.Info("site produced items", "site", site.Name, "count", len(results))
	return results
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}
