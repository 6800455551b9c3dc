package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/snipsearch/internal/search"
)

// FormatSearchResults renders reconciled entries as markdown.
func FormatSearchResults(term string, entries []*search.ResultEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No snippets found for \"%s\"", term)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Snippets matching \"%s\"\n\n", term)
	fmt.Fprintf(&sb, "Found %d snippet", len(entries))
	if len(entries) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, e := range entries {
		formatEntry(&sb, i+1, e)
	}
	return sb.String()
}

func formatEntry(sb *strings.Builder, num int, e *search.ResultEntry) {
	name := e.DisplayName
	if name == "" {
		name = e.SnippetID
	}
	fmt.Fprintf(sb, "### %d. %s\n\n", num, name)
	fmt.Fprintf(sb, "**ID:** `%s`", e.SnippetID)
	if e.Rating != nil {
		fmt.Fprintf(sb, " | **Rating:** %.1f (%d)", *e.Rating, e.RatingCount)
	}
	sb.WriteString("\n")
	if len(e.Files) > 0 {
		fmt.Fprintf(sb, "**Files:** %s\n", strings.Join(e.Files, ", "))
	}

	// Stable order for readers and tests.
	keys := make([]string, 0, len(e.Highlights))
	for k := range e.Highlights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, frag := range e.Highlights[k] {
			fmt.Fprintf(sb, "- `%s`: %s\n", k, frag)
		}
	}
	sb.WriteString("\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
