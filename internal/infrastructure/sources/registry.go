package sources

import (
	"log/slog"
	"net/http"

	"SOTAWatch/internal/scanner"
)

// NewRegistry registers every built-in scanner sharing one HTTP client.
func NewRegistry(client *http.Client, logger *slog.Logger) *scanner.Registry {
	logger = orDiscard(logger)
	reg := scanner.NewRegistry()
	reg.Register(NewGitHubScanner(client))
	reg.Register(NewHuggingFaceScanner(client))
	reg.Register(NewHackerNewsScanner(client, logger.With("scanner", "hackernews")))
	reg.Register(NewFeedScanner(client, logger.With("scanner", "rss")))
	reg.Register(NewArxivScanner(client, logger.With("scanner", "arxiv")))
	return reg
}
