package mcp

import (
	"github.com/Aman-CERP/snipsearch/internal/search"
)

// Tool names.
const (
	ToolSearchSnippets = "search_snippets"
	ToolRateSnippet    = "rate_snippet"
	ToolRefreshIndex   = "refresh_index"
)

// SearchInput defines the input schema for the search_snippets tool.
type SearchInput struct {
	Term        string `json:"term" jsonschema:"free-text search term, or * to list every snippet"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
	SkipRatings bool   `json:"skip_ratings,omitempty" jsonschema:"leave out average ratings"`
}

// SearchOutput defines the output schema for the search_snippets tool.
type SearchOutput struct {
	Term    string                `json:"term"`
	Count   int                   `json:"count"`
	Results []*search.ResultEntry `json:"results" jsonschema:"matching snippets, one entry per snippet"`
}

// RateInput defines the input schema for the rate_snippet tool.
type RateInput struct {
	SnippetID string  `json:"snippet_id" jsonschema:"id of the snippet to rate"`
	Value     float64 `json:"value" jsonschema:"rating from 1 to 5"`
	UserID    string  `json:"user_id,omitempty" jsonschema:"who is rating; defaults to the MCP client"`
}

// RateOutput defines the output schema for the rate_snippet tool.
type RateOutput struct {
	SnippetID string  `json:"snippet_id"`
	Value     float64 `json:"value"`
	Status    string  `json:"status"`
}

// RefreshInput defines the input schema for the refresh_index tool.
type RefreshInput struct {
	Index string `json:"index" jsonschema:"which index to re-crawl: metadata or files"`
}

// RefreshOutput defines the output schema for the refresh_index tool.
type RefreshOutput struct {
	Index  string `json:"index"`
	Status string `json:"status"`
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolDescriptions = map[string]string{
	ToolSearchSnippets: "Search code snippets by their metadata (name, description, readme) and by the content of their files. " +
		"Returns one entry per snippet with highlighted fragments, the matching file names and the average rating.",
	ToolRateSnippet:  "Record a 1-5 rating for a snippet. Ratings show up in later search results.",
	ToolRefreshIndex: "Re-crawl one search index (metadata or files) so recent snippet changes become searchable.",
}
