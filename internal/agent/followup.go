package agent

import (
	"fmt"
	"strings"
)

// followUpCue maps an ordinal word to a position in the in-focus identifiers.
type followUpCue struct {
	word  string
	index int
	// exact requires exactly index+1 identifiers in focus instead of at least.
	exact bool
}

// Order is precedence: the first cue that matches and whose precondition holds wins.
var followUpCues = []followUpCue{
	{word: "first", index: 0},
	{word: "second", index: 1},
	{word: "third", index: 2},
	{word: "that", index: 0, exact: true},
}

// resolveFollowUp rewrites a short-hand reference such as "the second one"
// into an explicit request for the matching in-focus resume. Matching is a
// plain substring test on the lower-cased query, so unrelated uses of these
// words ("at first glance") trigger it too.
func resolveFollowUp(query string, focus []int64) (string, bool) {
	if len(focus) == 0 {
		return query, false
	}

	lower := strings.ToLower(query)
	for _, cue := range followUpCues {
		if !strings.Contains(lower, cue.word) {
			continue
		}
		if cue.exact && len(focus) != cue.index+1 {
			continue
		}
		if len(focus) <= cue.index {
			continue
		}
		return fmt.Sprintf("Tell me more about Resume ID: %d", focus[cue.index]), true
	}

	return query, false
}
