package reader

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"SOTAWatch/internal/config"
	"SOTAWatch/internal/ports"
)

// New builds the configured expander, wrapped in a badger cache when
// cacheDir is set. It returns nil for kind "none".
func New(cfg config.ReaderConfig, logger *slog.Logger) (ports.ContentExpander, io.Closer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client := &http.Client{Timeout: cfg.Timeout}

	var expander ports.ContentExpander
	switch strings.ToLower(cfg.Kind) {
	case "", "none":
		return nil, nil, nil
	case "jina":
		expander = NewJina(client, cfg.Endpoint, cfg.APIKey, cfg.MaxChars, logger)
	case "readability":
		expander = NewReadability(client, cfg.MaxChars, logger)
	default:
		return nil, nil, fmt.Errorf("unknown reader kind %q", cfg.Kind)
	}

	if cfg.CacheDir == "" {
		return expander, nil, nil
	}
	cache, err := OpenCache(expander, cfg.CacheDir, false, cfg.CacheTTL, logger)
	if err != nil {
		return nil, nil, err
	}
	return cache, cache, nil
}

func truncate(s string, maxChars int) string {
	s = strings.TrimSpace(s)
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
