package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/scanner"
)

const (
	hackerNewsAPIURL  = "https://hacker-news.firebaseio.com/v0"
	hackerNewsItemURL = "https://news.ycombinator.com/item?id="
)

var defaultHNKeywords = []string{"gpt", "llm", "ai", "transformer", "openai", "nvidia", "google"}

// HackerNewsScanner keeps AI-related stories from the top list.
// Options: baseUrl, limit, keywords (comma separated), timeout, itemTimeout.
type HackerNewsScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*HackerNewsScanner)(nil)

// NewHackerNewsScanner wires an HTTP client.
func NewHackerNewsScanner(client *http.Client, logger *slog.Logger) *HackerNewsScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &HackerNewsScanner{client: client, logger: orDiscard(logger)}
}

// Name identifies the strategy inside the registry.
func (h *HackerNewsScanner) Name() string {
	return "hackernews"
}

type hnStory struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Score int    `json:"score"`
	Time  int64  `json:"time"`
}

// Scan reads the first N top stories and filters titles by keyword.
func (h *HackerNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	base := strings.TrimSuffix(req.Option("baseUrl", hackerNewsAPIURL), "/")
	limit := intOption(req.Option("limit", ""), 15)
	matcher := keywordMatcher(splitList(req.Option("keywords", "")))

	var ids []int64
	listTimeout := durationOption(req.Option("timeout", ""), 5*time.Second)
	if err := getJSON(ctx, h.client, base+"/topstories.json", nil, listTimeout, &ids); err != nil {
		return nil, fmt.Errorf("hackernews top stories: %w", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	itemTimeout := durationOption(req.Option("itemTimeout", ""), 3*time.Second)
	items := make([]domain.RawItem, 0, len(ids))
	for _, id := range ids {
		var story hnStory
		endpoint := fmt.Sprintf("%s/item/%d.json", base, id)
		if err := getJSON(ctx, h.client, endpoint, nil, itemTimeout, &story); err != nil {
			h.logger.Debug("skip hackernews item", "id", id, "error", err)
			continue
		}
		if story.Title == "" || !matcher.MatchString(story.Title) {
			continue
		}

		link := story.URL
		if link == "" {
			link = hackerNewsItemURL + strconv.FormatInt(story.ID, 10)
		}
		items = append(items, domain.RawItem{
			Source:      domain.SourceHackerNews,
			Title:       story.Title,
			URL:         link,
			Description: fmt.Sprintf("Score: %d", story.Score),
			PublishDate: strconv.FormatInt(story.Time, 10),
		})
	}
	return items, nil
}

// keywordMatcher matches keywords anywhere in a title, so "gpt" finds
// "ChatGPT". Keywords of one or two letters only match whole words, with an
// optional plural s, so "ai" does not fire on "said".
func keywordMatcher(keywords []string) *regexp.Regexp {
	var words, stems []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if utf8.RuneCountInString(kw) <= 2 {
			words = append(words, regexp.QuoteMeta(kw))
		} else {
			stems = append(stems, regexp.QuoteMeta(kw))
		}
	}
	if len(words) == 0 && len(stems) == 0 {
		return keywordMatcher(defaultHNKeywords)
	}

	var parts []string
	if len(words) > 0 {
		parts = append(parts, `\b(?:`+strings.Join(words, "|")+`)s?\b`)
	}
	if len(stems) > 0 {
		parts = append(parts, `(?:`+strings.Join(stems, "|")+`)`)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(parts, "|"))
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
