package dispatch

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// styleTags are appended by the enhancement stage when not already present.
var styleTags = []string{"cinematic lighting", "sharp focus", "rich color grading"}

// EnhancePrompt is the enhancement stage: it collapses stray whitespace and
// decorates the prompt with quality descriptors. Deterministic on purpose so
// retries submit the identical prompt.
func EnhancePrompt(prompt string) string {
	collapsed := strings.Join(strings.Fields(prompt), " ")
	if collapsed == "" {
		return collapsed
	}
	caser := cases.Title(language.Und)
	lowered := strings.ToLower(collapsed)
	var additions []string
	for _, tag := range styleTags {
		if !strings.Contains(lowered, tag) {
			additions = append(additions, tag)
		}
	}
	if len(additions) == 0 {
		return collapsed
	}
	return collapsed + ". " + caser.String(strings.Join(additions, ", "))
}
