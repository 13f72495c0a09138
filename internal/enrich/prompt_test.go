package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"SOTAWatch/internal/domain"
)

func TestBuildPromptContainsItemAndContract(t *testing.T) {
	t.Parallel()

	item := domain.RawItem{Source: domain.SourceGitHub, Title: "NewModel-7B release", URL: "https://x/2", Description: "SOTA weights"}
	prompt := BuildPrompt(item, "SOTA weights", 100, "")

	assert.Contains(t, prompt, "Title: NewModel-7B release")
	assert.Contains(t, prompt, "URL: https://x/2")
	assert.Contains(t, prompt, "Description: SOTA weights")
	assert.NotContains(t, prompt, "Content:")
	assert.Contains(t, prompt, `"is_noise"`)
	assert.Contains(t, prompt, "LLM, Vision, Agent, Tool, Framework, Hardware, Audio")
	assert.Contains(t, prompt, "Simplified Chinese")
}

func TestBuildPromptTruncatesContentByRunes(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("模", 50)
	prompt := BuildPrompt(domain.RawItem{Title: "t", Description: "d"}, content, 10, "English")

	assert.Contains(t, prompt, "Content:\n"+strings.Repeat("模", 10)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("模", 11))
	assert.Contains(t, prompt, "in English")
}
