package reader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"SOTAWatch/internal/ports"
)

const jinaEndpoint = "https://r.jina.ai/"

// Jina renders pages to plain text through the r.jina.ai reader proxy.
type Jina struct {
	client   *http.Client
	endpoint string
	apiKey   string
	maxChars int
	logger   *slog.Logger
}

var _ ports.ContentExpander = (*Jina)(nil)

// NewJina wires the reader; endpoint defaults to the public proxy.
func NewJina(client *http.Client, endpoint, apiKey string, maxChars int, logger *slog.Logger) *Jina {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = jinaEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Jina{client: client, endpoint: endpoint, apiKey: apiKey, maxChars: maxChars, logger: logger}
}

// Expand returns the rendered text of url or "" on any failure.
func (j *Jina) Expand(ctx context.Context, url string) string {
	text, err := j.fetch(ctx, url)
	if err != nil {
		j.logger.Debug("jina read failed", "url", url, "error", err)
		return ""
	}
	return truncate(text, j.maxChars)
}

func (j *Jina) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.endpoint+url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Retain-Images", "none")
	if j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jina returned %s", resp.Status)
	}

	// runes can take up to 4 bytes; read just enough for maxChars
	limit := int64(1 << 20)
	if j.maxChars > 0 {
		limit = int64(j.maxChars)*4 + 1024
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
