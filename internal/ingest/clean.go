package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const DefaultChunkWords = 300

var (
	bulletPattern     = regexp.MustCompile(`(?m)^[\s•*·\-]+`)
	disallowedPattern = regexp.MustCompile(`[^a-zA-Z0-9\n.,;:!?/()\- ]`)
	spacePattern      = regexp.MustCompile(`\s+`)

	// Leftover bullets and punctuation alone are not content.
	contentPattern = regexp.MustCompile(`[a-z0-9]`)
)

// Clean normalizes raw resume text for embedding: markup is dropped, the text
// is lower-cased, bullets become "- " and anything outside plain letters,
// digits and basic punctuation turns into a space. Text without a letter or
// digit left cleans to "".
func Clean(text string) string {
	text = strings.ToLower(stripHTML(text))
	text = bulletPattern.ReplaceAllString(text, "- ")
	text = disallowedPattern.ReplaceAllString(text, " ")
	text = spacePattern.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, " .", ".")
	if !contentPattern.MatchString(text) {
		return ""
	}
	return strings.TrimSpace(text)
}

// stripHTML keeps the text nodes of s with entities decoded. Script and style
// bodies are skipped.
func stripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawText(tag []byte) bool {
	name := string(tag)
	return name == "script" || name == "style"
}

// Chunk splits text on whitespace into consecutive pieces of at most maxWords
// words. A non-positive maxWords uses DefaultChunkWords.
func Chunk(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultChunkWords
	}

	words := strings.Fields(text)
	chunks := make([]string, 0, len(words)/maxWords+1)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}

	return chunks
}
