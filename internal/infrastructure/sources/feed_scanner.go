package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/scanner"
)

// FeedScanner reads RSS/Atom feeds listed as categories.
// Options: limit (per feed), timeout.
type FeedScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires an HTTP client used by the feed parser.
func NewFeedScanner(client *http.Client, logger *slog.Logger) *FeedScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &FeedScanner{client: client, logger: orDiscard(logger)}
}

// Name identifies the strategy inside the registry.
func (f *FeedScanner) Name() string {
	return "rss"
}

// Scan parses every feed; one broken feed does not hide the others.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = userAgent

	limit := intOption(req.Option("limit", ""), 20)
	timeout := durationOption(req.Option("timeout", ""), 10*time.Second)

	var items []domain.RawItem
	for _, cat := range req.Categories {
		feedCtx, cancel := context.WithTimeout(ctx, timeout)
		feed, err := parser.ParseURLWithContext(cat.URL, feedCtx)
		cancel()
		if err != nil {
			f.logger.Warn("feed unavailable", "feed", cat.Name, "error", err)
			continue
		}

		for i, entry := range feed.Items {
			if i >= limit {
				break
			}
			if entry.Link == "" {
				continue
			}
			items = append(items, domain.RawItem{
				Source:      domain.SourceRSS,
				Title:       strings.TrimSpace(entry.Title),
				URL:         entry.Link,
				Description: entryDescription(entry),
				PublishDate: entry.Published,
			})
		}
	}
	return items, nil
}

func entryDescription(entry *gofeed.Item) string {
	text := entry.Description
	if text == "" {
		text = entry.Content
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > 500 {
		text = string(runes[:500])
	}
	return text
}
