package llm

import "strings"

// StripFences removes a markdown code fence the model sometimes wraps its
// output in, with or without a language tag.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx != -1 {
		firstLine := strings.TrimSpace(text[:idx])
		switch strings.ToLower(firstLine) {
		case "", "json", "sql":
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
