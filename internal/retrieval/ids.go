package retrieval

import (
	"regexp"
	"strconv"
)

var (
	// Resume identifiers are long integers; five digits keeps years of
	// experience and similar small numbers out.
	queryIDPattern = regexp.MustCompile(`\b\d{5,}\b`)
	// contextIDPattern matches the field line every rendered section carries.
	contextIDPattern = regexp.MustCompile(`Resume ID:\s*(\d+)`)
)

// QueryIDs returns the resume identifiers named in a free-text query,
// deduplicated in first-seen order.
func QueryIDs(query string) []int64 {
	return parseUnique(queryIDPattern.FindAllString(query, -1))
}

// ScanResumeIDs returns the identifiers of every "Resume ID: <digits>" line of
// a rendered context, deduplicated in first-seen order.
func ScanResumeIDs(context string) []int64 {
	matches := contextIDPattern.FindAllStringSubmatch(context, -1)
	raw := make([]string, 0, len(matches))
	for _, m := range matches {
		raw = append(raw, m[1])
	}
	return parseUnique(raw)
}

func parseUnique(raw []string) []int64 {
	seen := make(map[int64]struct{}, len(raw))
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
