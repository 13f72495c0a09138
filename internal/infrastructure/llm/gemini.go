package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"SOTAWatch/internal/config"
	"SOTAWatch/internal/ports"
)

// GeminiClient implements ports.Reasoner over an ordered list of Gemini
// models. A busy (429) model is retried on the next one after a short pause;
// a missing (404) model is skipped; any other error stops the attempt.
type GeminiClient struct {
	client      *genai.Client
	models      []string
	temperature float32
	timeout     time.Duration
	busyDelay   time.Duration
	logger      *slog.Logger
	generate    func(ctx context.Context, model, prompt string) (string, error)
}

var _ ports.Reasoner = (*GeminiClient)(nil)

// NewGeminiClient dials the Gemini API.
func NewGeminiClient(ctx context.Context, cfg config.ReasonerConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("gemini client misconfigured")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	g := &GeminiClient{
		client:      client,
		models:      append([]string{cfg.Model}, cfg.FallbackModels...),
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
		busyDelay:   2 * time.Second,
		logger:      logger,
	}
	g.generate = g.generateWithSDK
	return g, nil
}

// Complete tries each configured model in order.
func (g *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, model := range g.models {
		text, err := g.generate(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		switch errorCode(err) {
		case http.StatusTooManyRequests:
			g.logger.Warn("gemini model busy, trying next", "model", model)
			if err := sleep(ctx, g.busyDelay); err != nil {
				return "", err
			}
		case http.StatusNotFound:
			g.logger.Warn("gemini model not found, trying next", "model", model)
		default:
			return "", fmt.Errorf("gemini %s: %w", model, err)
		}
	}
	return "", fmt.Errorf("all gemini models failed: %w", lastErr)
}

// Close releases the underlying client.
func (g *GeminiClient) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiClient) generateWithSDK(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	m := g.client.GenerativeModel(model)
	m.SetTemperature(g.temperature)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
		break
	}
	if text.Len() == 0 {
		return "", errors.New("gemini reply has no text")
	}
	return text.String(), nil
}

func errorCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return http.StatusTooManyRequests
	case strings.Contains(msg, "404"):
		return http.StatusNotFound
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
