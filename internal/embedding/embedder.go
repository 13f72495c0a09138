package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"SOTAWatch/internal/config"
	"SOTAWatch/internal/ports"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// Model is a loaded embedding backend.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Factory loads a Model. It is called at most once per Lazy.
type Factory func() (Model, error)

// Lazy owns an embedding model that is created on first use and shared by
// all callers afterwards. Blank text maps to the zero vector without touching
// the model.
type Lazy struct {
	dims    int
	factory Factory
	logger  *slog.Logger

	once  sync.Once
	model Model
	err   error
}

var _ ports.Embedder = (*Lazy)(nil)

// NewLazy wraps a factory; dims <= 0 falls back to DefaultDimensions.
func NewLazy(dims int, factory Factory, logger *slog.Logger) *Lazy {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Lazy{dims: dims, factory: factory, logger: logger}
}

// New selects a backend from configuration.
func New(cfg config.EmbeddingConfig, logger *slog.Logger) (*Lazy, error) {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	var factory Factory
	switch strings.ToLower(cfg.Backend) {
	case "", "hash":
		factory = func() (Model, error) { return NewHash(dims), nil }
	case "openai":
		factory = func() (Model, error) { return NewOpenAI(cfg) }
	case "onnx":
		factory = func() (Model, error) { return NewONNX(cfg) }
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}

	return NewLazy(dims, factory, logger), nil
}

// Dimensions returns the vector length produced by Embed.
func (l *Lazy) Dimensions() int {
	return l.dims
}

// Embed returns the embedding of text, initialising the model if needed.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, l.dims), nil
	}

	l.once.Do(func() {
		l.logger.Info("loading embedding model", "dimensions", l.dims)
		l.model, l.err = l.factory()
		if l.err != nil {
			l.logger.Error("embedding model unavailable", "error", l.err)
		}
	})
	if l.err != nil {
		return nil, fmt.Errorf("init embedding model: %w", l.err)
	}

	vec, err := l.model.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vec) != l.dims {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vec), l.dims)
	}
	return vec, nil
}
