package retrieval

import "strings"

const (
	identifierSnippetLimit = 350
	semanticSnippetLimit   = 400
	ellipsis               = "..."
)

// MakeSnippet trims text and shortens it to at most limit runes without
// splitting a word, appending an ellipsis when something was cut.
func MakeSnippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}

	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i != -1 {
		cut = cut[:i]
	}

	return cut + ellipsis
}
