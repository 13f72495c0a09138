package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SOTAWatch/internal/domain"
)

func TestParseAnalysisPlain(t *testing.T) {
	t.Parallel()

	a, err := ParseAnalysis(`{"score":9,"summary":"发布新模型","tag":"LLM"}`)
	require.NoError(t, err)
	assert.Equal(t, 9, a.Score)
	assert.Equal(t, "发布新模型", a.Summary)
	assert.Equal(t, domain.TagLLM, a.Tag)
	assert.Nil(t, a.IsNoise)
}

func TestParseAnalysisFencedWithNoise(t *testing.T) {
	t.Parallel()

	reply := "```json\n{\"is_noise\": false, \"score\": 7.0, \"summary\": \" agent kit \", \"tag\": \"agent\"}\n```"
	a, err := ParseAnalysis(reply)
	require.NoError(t, err)
	assert.Equal(t, 7, a.Score)
	assert.Equal(t, "agent kit", a.Summary)
	assert.Equal(t, domain.TagAgent, a.Tag)
	require.NotNil(t, a.IsNoise)
	assert.False(t, *a.IsNoise)
}

func TestParseAnalysisSurroundingProse(t *testing.T) {
	t.Parallel()

	a, err := ParseAnalysis("Sure! Here it is: {\"score\": 6, \"summary\": \"s\", \"tag\": \"Tool\"} hope it helps")
	require.NoError(t, err)
	assert.Equal(t, domain.TagTool, a.Tag)
}

func TestParseAnalysisRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":        "not json",
		"missing score":   `{"summary":"s","tag":"LLM"}`,
		"missing summary": `{"score":5,"tag":"LLM"}`,
		"missing tag":     `{"score":5,"summary":"s"}`,
		"fractional":      `{"score":5.5,"summary":"s","tag":"LLM"}`,
		"too high":        `{"score":11,"summary":"s","tag":"LLM"}`,
		"negative":        `{"score":-1,"summary":"s","tag":"LLM"}`,
		"string score":    `{"score":"9","summary":"s","tag":"LLM"}`,
		"unknown tag":     `{"score":9,"summary":"s","tag":"Robotics"}`,
		"blank summary":   `{"score":9,"summary":"  ","tag":"LLM"}`,
		"broken":          `{"score":9,"summary":"s"`,
	}
	for name, reply := range cases {
		_, err := ParseAnalysis(reply)
		assert.ErrorIs(t, err, domain.ErrMalformedAnalysis, name)
	}
}
