package reader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"SOTAWatch/internal/ports"
)

// Readability fetches the page directly and keeps its main article text.
type Readability struct {
	client   *http.Client
	maxChars int
	logger   *slog.Logger
}

var _ ports.ContentExpander = (*Readability)(nil)

// NewReadability wires the direct-fetch reader.
func NewReadability(client *http.Client, maxChars int, logger *slog.Logger) *Readability {
	if client == nil {
		client = http.DefaultClient
	}
	return &Readability{client: client, maxChars: maxChars, logger: logger}
}

// Expand returns the readable text of rawURL or "" on any failure.
func (r *Readability) Expand(ctx context.Context, rawURL string) string {
	text, err := r.read(ctx, rawURL)
	if err != nil {
		r.logger.Debug("readability failed", "url", rawURL, "error", err)
		return ""
	}
	return truncate(text, r.maxChars)
}

func (r *Readability) read(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "SOTAWatch/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(io.LimitReader(resp.Body, 4<<20), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	var blocks []string
	doc.Find("h1,h2,h3,h4,p,li,pre").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(blocks, "\n"), nil
}
