package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/scanner"
)

const huggingFaceURL = "https://huggingface.co"

// HuggingFaceScanner lists the most liked models on the hub.
// Options: baseUrl, limit, token, timeout.
type HuggingFaceScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*HuggingFaceScanner)(nil)

// NewHuggingFaceScanner wires an HTTP client.
func NewHuggingFaceScanner(client *http.Client) *HuggingFaceScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &HuggingFaceScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (h *HuggingFaceScanner) Name() string {
	return "huggingface"
}

type hubModel struct {
	ModelID      string `json:"modelId"`
	ID           string `json:"id"`
	Likes        int    `json:"likes"`
	PipelineTag  string `json:"pipeline_tag"`
	LastModified string `json:"lastModified"`
}

// Scan queries the models API sorted by likes.
func (h *HuggingFaceScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	base := strings.TrimSuffix(req.Option("baseUrl", huggingFaceURL), "/")

	params := url.Values{}
	params.Set("sort", "likes")
	params.Set("direction", "-1")
	params.Set("limit", strconv.Itoa(intOption(req.Option("limit", ""), 20)))
	params.Set("full", "true")

	headers := map[string]string{}
	if token := req.Option("token", ""); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	var models []hubModel
	timeout := durationOption(req.Option("timeout", ""), 10*time.Second)
	if err := getJSON(ctx, h.client, base+"/api/models?"+params.Encode(), headers, timeout, &models); err != nil {
		return nil, fmt.Errorf("huggingface models: %w", err)
	}

	items := make([]domain.RawItem, 0, len(models))
	for _, m := range models {
		if m.LastModified == "" {
			continue
		}
		id := m.ModelID
		if id == "" {
			id = m.ID
		}
		task := m.PipelineTag
		if task == "" {
			task = "Unknown"
		}
		items = append(items, domain.RawItem{
			Source:      domain.SourceHuggingFace,
			Title:       id,
			URL:         huggingFaceURL + "/" + id,
			Description: fmt.Sprintf("❤️ %d | Task: %s", m.Likes, task),
			PublishDate: m.LastModified,
		})
	}
	return items, nil
}
