package service

import (
	"strings"
	"unicode/utf8"
)

// extractJSONObject pulls the outermost JSON object out of an LLM response,
// tolerating markdown fences and surrounding commentary. Returns the raw
// response when no object boundaries are found; the caller's json.Unmarshal
// then produces the actual failure.
func extractJSONObject(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return content
	}
	return content[start : end+1]
}

// sanitizeUTF8 removes invalid UTF-8 sequences from a string.
// This prevents PostgreSQL encoding errors when saving text.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8 sequence, skip this byte
			s = s[1:]
			continue
		}
		result.WriteRune(r)
		s = s[size:]
	}

	return result.String()
}
