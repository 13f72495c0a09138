package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SOTAWatch/internal/domain"
	"SOTAWatch/internal/scanner"
)

func TestGitHubScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/repositories" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "AI topic:ai" || q.Get("sort") != "created" || q.Get("per_page") != "20" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		_, _ = w.Write([]byte(`{"items":[
			{"full_name":"org/agent-kit","html_url":"https://github.com/org/agent-kit","description":"Agents","stargazers_count":42,"created_at":"2025-11-08T10:00:00Z"}
		]}`))
	}))
	defer server.Close()

	sc := NewGitHubScanner(server.Client())
	items, err := sc.Scan(context.Background(), scanner.Request{
		Options: map[string]string{"baseUrl": server.URL, "token": "secret"},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	want := domain.RawItem{
		Source:      domain.SourceGitHub,
		Title:       "org/agent-kit",
		URL:         "https://github.com/org/agent-kit",
		Description: "⭐ 42 | Agents",
		PublishDate: "2025-11-08T10:00:00Z",
	}
	if items[0] != want {
		t.Fatalf("unexpected item: %+v", items[0])
	}
}

func TestGitHubScannerNon200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewGitHubScanner(server.Client()).Scan(context.Background(), scanner.Request{
		Options: map[string]string{"baseUrl": server.URL},
	})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestHuggingFaceScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models" || r.URL.Query().Get("sort") != "likes" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`[
			{"modelId":"lab/NewModel-7B","likes":900,"pipeline_tag":"text-generation","lastModified":"2025-11-08T00:00:00.000Z"},
			{"modelId":"lab/no-date","likes":1},
			{"id":"lab/untagged","likes":3,"lastModified":"2025-11-07T00:00:00.000Z"}
		]`))
	}))
	defer server.Close()

	items, err := NewHuggingFaceScanner(server.Client()).Scan(context.Background(), scanner.Request{
		Options: map[string]string{"baseUrl": server.URL},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].URL != "https://huggingface.co/lab/NewModel-7B" {
		t.Fatalf("unexpected url: %s", items[0].URL)
	}
	if items[0].Description != "❤️ 900 | Task: text-generation" {
		t.Fatalf("unexpected description: %s", items[0].Description)
	}
	if items[1].Title != "lab/untagged" || items[1].Description != "❤️ 3 | Task: Unknown" {
		t.Fatalf("unexpected fallback item: %+v", items[1])
	}
}

func TestHackerNewsScannerFiltersKeywords(t *testing.T) {
	t.Parallel()

	stories := map[string]string{
		"/item/1.json": `{"id":1,"title":"OpenAI ships a new model","url":"https://openai.com/x","score":300,"time":1700000000}`,
		"/item/2.json": `{"id":2,"title":"Airline prices rise","url":"https://news/x","score":10,"time":1700000001}`,
		"/item/3.json": `{"id":3,"title":"Ask HN: Which LLMs do you use?","score":55,"time":1700000002}`,
		"/item/4.json": `{"id":4,"title":"Beyond the limit","url":"https://later","score":1,"time":1}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/topstories.json" {
			_, _ = w.Write([]byte(`[1,2,3,4]`))
			return
		}
		body, ok := stories[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	items, err := NewHackerNewsScanner(server.Client(), nil).Scan(context.Background(), scanner.Request{
		Options: map[string]string{"baseUrl": server.URL, "limit": "3"},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].URL != "https://openai.com/x" || items[0].Description != "Score: 300" || items[0].PublishDate != "1700000000" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].URL != "https://news.ycombinator.com/item?id=3" {
		t.Fatalf("expected discussion url fallback, got %s", items[1].URL)
	}
}

func TestKeywordMatcher(t *testing.T) {
	t.Parallel()

	matcher := keywordMatcher(nil)
	cases := map[string]bool{
		"ChatGPT launches voice mode":        true,
		"GPT-5 system card":                  true,
		"NVIDIA's Blackwell benchmarks":      true,
		"Open-source LLMs are catching up":   true,
		"AI agents in production":            true,
		"What AIs cannot do yet":             true,
		"He said the bike needs maintaining": false,
		"Airline prices rise":                false,
	}
	for title, want := range cases {
		if got := matcher.MatchString(title); got != want {
			t.Errorf("match %q = %v, want %v", title, got, want)
		}
	}

	custom := keywordMatcher([]string{" ", "ml", "diffusion"})
	if !custom.MatchString("Stable Diffusion 4") || !custom.MatchString("ML infra notes") {
		t.Fatalf("custom keywords should match")
	}
	if custom.MatchString("HTML tricks") {
		t.Fatalf("short keyword matched inside a word")
	}
}

func TestFeedScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.xml" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Lab blog</title>
<item><title> Vision model v2 </title><link>https://lab.ai/v2</link><description>&lt;p&gt;Better &lt;b&gt;vision&lt;/b&gt;&lt;/p&gt;</description><pubDate>Sat, 08 Nov 2025 10:00:00 GMT</pubDate></item>
<item><title>No link</title></item>
</channel></rss>`))
	}))
	defer server.Close()

	items, err := NewFeedScanner(server.Client(), nil).Scan(context.Background(), scanner.Request{
		SiteName: "blogs",
		Categories: []scanner.Category{
			{Name: "broken", URL: server.URL + "/broken.xml"},
			{Name: "lab", URL: server.URL + "/feed.xml"},
		},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Vision model v2" || items[0].URL != "https://lab.ai/v2" {
		t.Fatalf("unexpected item: %+v", items[0])
	}
	if items[0].Description != "Better vision" {
		t.Fatalf("unexpected description: %q", items[0].Description)
	}
	if items[0].Source != domain.SourceRSS {
		t.Fatalf("unexpected source: %s", items[0].Source)
	}
}
