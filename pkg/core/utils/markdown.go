package utils

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// CleanMarkdown unwraps an answer the model returned inside a single fenced
// block. Answers that merely contain code blocks are returned trimmed.
func CleanMarkdown(input string) string {
	answer := strings.TrimSpace(input)
	if !strings.HasSuffix(answer, "```") || strings.Count(answer, "```") != 2 {
		return answer
	}
	for _, fence := range []string{"```markdown", "```md", "```"} {
		if strings.HasPrefix(answer, fence) {
			body := strings.TrimSuffix(strings.TrimPrefix(answer, fence), "```")
			return strings.TrimSpace(body)
		}
	}
	return answer
}

// ValidateMarkdown checks that the answer parses as a Markdown document with
// at least one block. Goldmark is permissive, so this mainly rejects empty output.
func ValidateMarkdown(input string) bool {
	if strings.TrimSpace(input) == "" {
		return false
	}
	parser := goldmark.DefaultParser()
	reader := text.NewReader([]byte(input))
	doc := parser.Parse(reader)
	return doc != nil && doc.HasChildren()
}
