package domain

import (
	"errors"
	"strings"
	"time"
)

// Source enumerates the upstream feeds an item can come from.
type Source string

const (
	SourceGitHub      Source = "github"
	SourceHuggingFace Source = "huggingface"
	SourceHackerNews  Source = "hackernews"
	SourceRSS         Source = "rss"
	SourceArxiv       Source = "arxiv"
)

// RawItem is a normalized record produced by a source adapter.
// URL is the only identity key; PublishDate keeps the source-native format.
type RawItem struct {
	Source      Source
	Title       string
	URL         string
	Description string
	PublishDate string
}

// Tag is the single category label assigned during enrichment.
type Tag string

const (
	TagLLM       Tag = "LLM"
	TagVision    Tag = "Vision"
	TagAgent     Tag = "Agent"
	TagTool      Tag = "Tool"
	TagFramework Tag = "Framework"
	TagHardware  Tag = "Hardware"
	TagAudio     Tag = "Audio"
)

// Tags lists the allowed vocabulary in prompt order.
var Tags = []Tag{TagLLM, TagVision, TagAgent, TagTool, TagFramework, TagHardware, TagAudio}

// ParseTag matches a label against the vocabulary ignoring case.
func ParseTag(value string) (Tag, bool) {
	value = strings.TrimSpace(value)
	for _, tag := range Tags {
		if strings.EqualFold(string(tag), value) {
			return tag, true
		}
	}
	return "", false
}

// Analysis is the validated verdict returned by the reasoning service.
type Analysis struct {
	Score   int
	Summary string
	Tag     Tag
	IsNoise *bool
}

// Noise reports whether the service explicitly flagged the item as noise.
func (a Analysis) Noise() bool {
	return a.IsNoise != nil && *a.IsNoise
}

// EnrichedItem is a raw item together with its analysis. It is built as a new
// value and never shares storage with the RawItem it came from.
type EnrichedItem struct {
	RawItem
	Analysis
}

// NewEnrichedItem combines an item with its analysis.
func NewEnrichedItem(item RawItem, analysis Analysis) EnrichedItem {
	return EnrichedItem{RawItem: item, Analysis: analysis}
}

// EmbeddingText is the text the stored embedding is derived from.
func (e EnrichedItem) EmbeddingText() string {
	return e.Title + " " + e.Summary + " " + string(e.Tag)
}

// StoredRecord is the persisted form of a qualifying item.
type StoredRecord struct {
	ID          int64
	Title       string
	URL         string
	Summary     string
	Score       int
	Tags        string
	Source      string
	PublishDate string
	Embedding   []float32
	CreatedAt   time.Time
}

// NewStoredRecord maps an enriched item and its embedding to a row.
func NewStoredRecord(item EnrichedItem, embedding []float32) StoredRecord {
	return StoredRecord{
		Title:       item.Title,
		URL:         item.URL,
		Summary:     item.Summary,
		Score:       item.Score,
		Tags:        string(item.Tag),
		Source:      string(item.Source),
		PublishDate: item.PublishDate,
		Embedding:   embedding,
	}
}

// BackfillText is the text used when repairing a missing embedding.
func (r StoredRecord) BackfillText() string {
	return strings.Join([]string{r.Title, r.Summary, r.Tags, r.Source}, " ")
}

// SearchHit is a stored record ranked by semantic similarity.
type SearchHit struct {
	Record     StoredRecord
	Similarity float64
}

var (
	// ErrDuplicateURL signals the store already holds a record with this URL.
	ErrDuplicateURL = errors.New("url already recorded")
	// ErrMalformedAnalysis signals the reasoning output broke the JSON contract.
	ErrMalformedAnalysis = errors.New("malformed analysis")
	// ErrReasonerUnavailable signals no reasoning provider is configured.
	ErrReasonerUnavailable = errors.New("reasoner unavailable")
)
