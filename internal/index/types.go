// Package index talks to the search-index service that holds the two snippet
// indexes: one over snippet metadata and one over individual file contents.
// It issues queries, parses hits and asks the service to re-crawl an index.
// Reconciling the two result lists is the search package's job.
package index

import (
	"context"
	"fmt"
)

// Kind names one of the two indexes.
type Kind string

const (
	// KindMetadata is the index over snippet descriptive fields.
	KindMetadata Kind = "metadata"
	// KindFileContent is the index over individual blob contents.
	KindFileContent Kind = "files"
)

// MatchAllTerm is the search term that matches every document.
// The service computes no highlights for it.
const MatchAllTerm = "*"

// Field names as stored in the indexes.
const (
	FieldID          = "id"
	FieldDisplayName = "displayName"
	FieldDescription = "description"
	FieldReadme      = "readme"
	FieldContent     = "content"
	FieldStoragePath = "metadata_storage_path"
	FieldStorageName = "metadata_storage_name"
)

// MetadataHighlightFields are the metadata fields eligible for highlighting.
var MetadataHighlightFields = []string{FieldReadme, FieldDescription, FieldDisplayName}

// FileHighlightFields are the file-content fields eligible for highlighting.
var FileHighlightFields = []string{FieldContent}

// ParseKind converts a user-supplied name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindMetadata, KindFileContent:
		return Kind(s), nil
	case "meta", "snippets":
		return KindMetadata, nil
	case "file", "content":
		return KindFileContent, nil
	default:
		return "", fmt.Errorf("unknown index kind %q (want %q or %q)", s, KindMetadata, KindFileContent)
	}
}

// IsMatchAll reports whether term is the match-everything token.
func IsMatchAll(term string) bool {
	return term == MatchAllTerm
}

// Query is one search request against one index.
type Query struct {
	Kind Kind
	// Term is free text, or MatchAllTerm.
	Term string
	// HighlightFields are the fields the service should highlight.
	HighlightFields []string
}

// Hit is one record returned by an index.
type Hit struct {
	Kind Kind

	// SnippetID is the native key of a metadata hit. Empty for file hits,
	// whose identity must be derived from StoragePath.
	SnippetID string

	// DisplayName is set only on metadata hits that have one.
	DisplayName string

	// StoragePath is the base64-encoded blob path of a file hit.
	StoragePath string

	// FileName is the blob's name within the snippet's container (file hits only).
	FileName string

	// Highlights maps field name to fragments. Nil when the term was MatchAllTerm.
	Highlights map[string][]string
}

// HasHighlights reports whether the hit carries at least one fragment.
func (h Hit) HasHighlights() bool {
	for _, frags := range h.Highlights {
		if len(frags) > 0 {
			return true
		}
	}
	return false
}

// Querier executes a single index query.
// A nil slice with nil error never happens: zero hits is an empty slice, and a
// response with neither hits nor an error payload is reported as an error.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Hit, error)
}

// Refresher asks the service to re-crawl one index.
type Refresher interface {
	Refresh(ctx context.Context, kind Kind) error
}

// Service is a backend that can both query and refresh.
type Service interface {
	Querier
	Refresher
	Close() error
}
