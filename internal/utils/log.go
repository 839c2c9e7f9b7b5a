package utils

import "strings"

// TruncateForLog trims s and cuts it to at most limit runes, marking the cut
// with an ellipsis. Prompts and model output go through it before logging.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
