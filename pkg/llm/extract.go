package llm

import "strings"

// Between returns the trimmed text between the first open delimiter and the next close
// delimiter after it. A missing delimiter yields the empty string.
func Between(text, open, close string) string {
	start := strings.Index(text, open)
	if start < 0 {
		return ""
	}
	rest := text[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// Tagged extracts the content of <tag>...</tag> from text.
func Tagged(text, tag string) string {
	if tag == "" {
		return ""
	}
	return Between(text, "<"+tag+">", "</"+tag+">")
}
