package enrich

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"SOTAWatch/internal/domain"
)

type rawAnalysis struct {
	IsNoise *bool    `json:"is_noise"`
	Score   *float64 `json:"score"`
	Summary *string  `json:"summary"`
	Tag     *string  `json:"tag"`
}

// ParseAnalysis extracts and validates the JSON verdict from a model reply.
// Code fences and surrounding prose are tolerated; missing keys, a
// non-integer or out-of-range score, or an unknown tag are not.
func ParseAnalysis(reply string) (domain.Analysis, error) {
	body := stripFences(reply)

	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return domain.Analysis{}, fmt.Errorf("%w: no JSON object in reply", domain.ErrMalformedAnalysis)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %v", domain.ErrMalformedAnalysis, err)
	}

	if raw.Score == nil || raw.Summary == nil || raw.Tag == nil {
		return domain.Analysis{}, fmt.Errorf("%w: missing score, summary or tag", domain.ErrMalformedAnalysis)
	}

	score := *raw.Score
	if score != math.Trunc(score) || score < 0 || score > 10 {
		return domain.Analysis{}, fmt.Errorf("%w: score %v outside 0..10", domain.ErrMalformedAnalysis, score)
	}

	summary := strings.TrimSpace(*raw.Summary)
	if summary == "" {
		return domain.Analysis{}, fmt.Errorf("%w: empty summary", domain.ErrMalformedAnalysis)
	}

	tag, ok := domain.ParseTag(*raw.Tag)
	if !ok {
		return domain.Analysis{}, fmt.Errorf("%w: unknown tag %q", domain.ErrMalformedAnalysis, *raw.Tag)
	}

	return domain.Analysis{
		Score:   int(score),
		Summary: summary,
		Tag:     tag,
		IsNoise: raw.IsNoise,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
