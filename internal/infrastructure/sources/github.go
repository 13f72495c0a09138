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

const (
	githubAPIURL       = "https://api.github.com"
	githubDefaultQuery = "AI topic:ai"
)

// GitHubScanner lists the newest repositories matching a search query.
// Options: baseUrl, query, perPage, token, timeout.
type GitHubScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*GitHubScanner)(nil)

// NewGitHubScanner wires an HTTP client.
func NewGitHubScanner(client *http.Client) *GitHubScanner {
	if client == nil {
		client = &http.Client{}
	}
	return &GitHubScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (g *GitHubScanner) Name() string {
	return "github"
}

type githubSearchResponse struct {
	Items []struct {
		FullName    string `json:"full_name"`
		HTMLURL     string `json:"html_url"`
		Description string `json:"description"`
		Stars       int    `json:"stargazers_count"`
		CreatedAt   string `json:"created_at"`
	} `json:"items"`
}

// Scan queries the repository search API.
func (g *GitHubScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	params := url.Values{}
	params.Set("q", req.Option("query", githubDefaultQuery))
	params.Set("sort", "created")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(intOption(req.Option("perPage", ""), 20)))

	endpoint := strings.TrimSuffix(req.Option("baseUrl", githubAPIURL), "/") + "/search/repositories?" + params.Encode()
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if token := req.Option("token", ""); token != "" {
		headers["Authorization"] = "token " + token
	}

	var payload githubSearchResponse
	timeout := durationOption(req.Option("timeout", ""), 10*time.Second)
	if err := getJSON(ctx, g.client, endpoint, headers, timeout, &payload); err != nil {
		return nil, fmt.Errorf("github search: %w", err)
	}

	items := make([]domain.RawItem, 0, len(payload.Items))
	for _, repo := range payload.Items {
		items = append(items, domain.RawItem{
			Source:      domain.SourceGitHub,
			Title:       repo.FullName,
			URL:         repo.HTMLURL,
			Description: fmt.Sprintf("⭐ %d | %s", repo.Stars, repo.Description),
			PublishDate: repo.CreatedAt,
		})
	}
	return items, nil
}
