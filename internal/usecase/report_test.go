package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"SOTAWatch/internal/domain"
)

func TestBuildReport(t *testing.T) {
	t.Parallel()
	report := BuildReport([]domain.EnrichedItem{
		enriched("https://x/1", "First", 8),
		enriched("https://x/2", "Second", 9),
	})

	assert.True(t, strings.HasPrefix(report, ReportHeader))
	assert.Contains(t, report, "### [LLM] First\n")
	assert.Contains(t, report, "**Score:** 9/10  |  **Source:** github")
	assert.Contains(t, report, "> 💡 **Summary:** summary of Second")
	assert.Contains(t, report, "🔗 [Link](https://x/2)")
	assert.Less(t, strings.Index(report, "First"), strings.Index(report, "Second"))
}

func TestBuildReportEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, NoUpdatesReport, BuildReport(nil))
}

func TestShouldNotify(t *testing.T) {
	t.Parallel()
	items := []domain.EnrichedItem{enriched("https://x/1", "First", 8)}

	assert.True(t, ShouldNotify(items, BuildReport(items)))
	assert.False(t, ShouldNotify(nil, BuildReport(nil)))
	assert.False(t, ShouldNotify(items, NoUpdatesReport))
	assert.False(t, ShouldNotify(items, " "))
}
