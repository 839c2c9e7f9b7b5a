package retrieval

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	noSemanticResults = "No relevant resume data found."
	noResumeData      = "No data found for this resume ID in the database."
	unknownCategory   = "Unknown"
)

type Mode int

const (
	ModeSemantic Mode = iota
	ModeIdentifier
)

func (m Mode) String() string {
	if m == ModeIdentifier {
		return "identifier"
	}
	return "semantic"
}

// Section groups the chunks found for one requested resume identifier.
type Section struct {
	ResumeID int64
	Category string
	Snippets []string
	Found    bool
}

// Hit is a single semantic search result.
type Hit struct {
	ResumeID int64
	Category string
	Snippet  string
	Score    float64
}

// Result is the structured output of a search. Context renders it into the
// text block handed to the answering model.
type Result struct {
	Mode     Mode
	Sections []Section
	Hits     []Hit
}

// ResumeIDs returns the identifiers the result actually holds data for, in
// presentation order.
func (r *Result) ResumeIDs() []int64 {
	if r == nil {
		return nil
	}

	seen := make(map[int64]struct{})
	var ids []int64
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	switch r.Mode {
	case ModeIdentifier:
		for _, s := range r.Sections {
			if s.Found {
				add(s.ResumeID)
			}
		}
	default:
		for _, h := range r.Hits {
			add(h.ResumeID)
		}
	}

	return ids
}

func (r *Result) Context() string {
	if r == nil {
		return noSemanticResults
	}
	if r.Mode == ModeIdentifier {
		return r.identifierContext()
	}
	return r.semanticContext()
}

func (r *Result) identifierContext() string {
	ids := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		ids = append(ids, strconv.FormatInt(s.ResumeID, 10))
	}

	parts := []string{
		fmt.Sprintf("Comparison context for Resume IDs: %s\n(Each section below describes one resume.)", strings.Join(ids, ", ")),
	}

	for _, s := range r.Sections {
		if !s.Found {
			// No "Resume ID:" line here: identifiers without data must not come into focus.
			parts = append(parts, fmt.Sprintf("\n=== Resume ID %d ===\n%s", s.ResumeID, noResumeData))
			continue
		}

		lines := []string{
			fmt.Sprintf("\n=== Resume ID %d ===", s.ResumeID),
			fmt.Sprintf("Resume ID: %d", s.ResumeID),
			fmt.Sprintf("Category: %s", s.Category),
			"Key snippets (work experience / skills / summary):",
		}
		for _, snippet := range s.Snippets {
			lines = append(lines, "- "+snippet)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n")
}

func (r *Result) semanticContext() string {
	if len(r.Hits) == 0 {
		return noSemanticResults
	}

	blocks := make([]string, 0, len(r.Hits))
	for i, h := range r.Hits {
		blocks = append(blocks, fmt.Sprintf("Result %d\nResume ID: %d\nCategory: %s\nSnippet: %s\n", i+1, h.ResumeID, h.Category, h.Snippet))
	}

	return strings.Join(blocks, "\n")
}
