package enrich

import (
	"fmt"
	"strings"

	"SOTAWatch/internal/domain"
)

const defaultSummaryLanguage = "Simplified Chinese"

// BuildPrompt renders the analyst instruction for one item. content is the
// expanded page text (or the description fallback) and is cut to limit runes.
func BuildPrompt(item domain.RawItem, content string, limit int, language string) string {
	if language == "" {
		language = defaultSummaryLanguage
	}

	tags := make([]string, len(domain.Tags))
	for i, tag := range domain.Tags {
		tags[i] = string(tag)
	}

	var b strings.Builder
	b.WriteString("You are the chief technical analyst of SOTA Watch. Read the following AI project or news item.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	fmt.Fprintf(&b, "URL: %s\n", item.URL)
	fmt.Fprintf(&b, "Source: %s\n", item.Source)
	fmt.Fprintf(&b, "Description: %s\n", item.Description)

	content = strings.TrimSpace(content)
	if content != "" && content != strings.TrimSpace(item.Description) {
		fmt.Fprintf(&b, "\nContent:\n%s\n", truncateRunes(content, limit))
	}

	b.WriteString("\nTasks:\n")
	b.WriteString("1. Decide whether this is noise (tutorials, course lists, reposts, marketing) and set is_noise.\n")
	b.WriteString("2. Rate its importance from 0 to 10. SOTA models or major framework releases score 9-10, ordinary demos or papers 6-8, tutorials or filler 0-3.\n")
	fmt.Fprintf(&b, "3. Summarize its core value in one concise sentence in %s.\n", language)
	fmt.Fprintf(&b, "4. Pick exactly one tag from: %s.\n", strings.Join(tags, ", "))
	b.WriteString("\nReply with one valid JSON object only, without Markdown fences:\n")
	b.WriteString(`{"is_noise": <true|false>, "score": <integer 0-10>, "summary": "<summary>", "tag": "<tag>"}`)
	b.WriteString("\n")

	return b.String()
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
