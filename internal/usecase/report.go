package usecase

import (
	"fmt"
	"strings"

	"SOTAWatch/internal/domain"
)

const (
	// ReportHeader opens every daily report.
	ReportHeader = "# 🚨 SOTA Watch Daily"
	// NoUpdatesReport is the whole report when nothing qualified.
	NoUpdatesReport = "No SOTA updates found today."
)

// BuildReport renders the qualifying items as Markdown in input order.
func BuildReport(items []domain.EnrichedItem) string {
	if len(items) == 0 {
		return NoUpdatesReport
	}

	var b strings.Builder
	b.WriteString(ReportHeader)
	b.WriteString("\n\n")
	for _, item := range items {
		fmt.Fprintf(&b, "### [%s] %s\n", item.Tag, item.Title)
		fmt.Fprintf(&b, "**Score:** %d/10  |  **Source:** %s\n\n", item.Score, item.Source)
		fmt.Fprintf(&b, "> 💡 **Summary:** %s\n\n", item.Summary)
		fmt.Fprintf(&b, "🔗 [Link](%s)\n", item.URL)
		b.WriteString("---\n")
	}
	return b.String()
}

// ShouldNotify suppresses empty reports.
func ShouldNotify(items []domain.EnrichedItem, report string) bool {
	if len(items) == 0 || strings.TrimSpace(report) == "" {
		return false
	}
	return !strings.Contains(report, NoUpdatesReport)
}
