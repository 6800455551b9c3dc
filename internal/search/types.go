// Package search reconciles hits from the snippet metadata index and the
// file-content index into one result per snippet, backfills display names
// from the system of record and attaches aggregate ratings.
package search

import (
	"context"
	"maps"
	"slices"
)

// Origin records which index first surfaced a result entry.
type Origin string

const (
	// OriginMetadata marks entries created from a metadata-index hit.
	OriginMetadata Origin = "metadata"
	// OriginFile marks entries promoted from an orphan file-content hit.
	OriginFile Origin = "file"
)

// ResultEntry is one snippet in a reconciled result set.
type ResultEntry struct {
	SnippetID   string `json:"snippet_id"`
	DisplayName string `json:"display_name,omitempty"`

	// Highlights maps a field name, or the blob name of a contributing
	// file, to the matched fragments.
	Highlights map[string][]string `json:"highlights,omitempty"`

	// Files lists blob names whose content matched, in hit order.
	Files []string `json:"files,omitempty"`

	Origin Origin `json:"origin"`

	// Rating is the average rating; nil when the snippet is unrated.
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount int      `json:"rating_count,omitempty"`
}

// HasHighlights reports whether the entry carries at least one fragment.
func (e *ResultEntry) HasHighlights() bool {
	for _, frags := range e.Highlights {
		if len(frags) > 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (e *ResultEntry) Clone() *ResultEntry {
	c := *e
	if e.Highlights != nil {
		c.Highlights = make(map[string][]string, len(e.Highlights))
		for k, v := range e.Highlights {
			c.Highlights[k] = slices.Clone(v)
		}
	}
	c.Files = slices.Clone(e.Files)
	if e.Rating != nil {
		r := *e.Rating
		c.Rating = &r
	}
	return &c
}

// NameRecord is a system-of-record answer for one snippet.
type NameRecord struct {
	SnippetID   string
	DisplayName string // empty when the owner never set one
}

// LookupFunc fetches records for ids in one round trip.
// Ids without a record are simply absent from the result.
type LookupFunc func(ctx context.Context, ids []string) ([]NameRecord, error)

// RatingRecord is the aggregate rating of one snippet.
type RatingRecord struct {
	SnippetID string
	Average   float64
	Count     int
}

// RatingFunc fetches averages for ids in one round trip.
// Unrated ids are absent from the result.
type RatingFunc func(ctx context.Context, ids []string) ([]RatingRecord, error)

// Stats describes how a reconciliation went.
type Stats struct {
	MetadataHits int
	FileHits     int
	// FoldedFileHits were merged into an existing entry.
	FoldedFileHits int
	// InvalidPaths were file hits skipped for an undecodable storage path.
	InvalidPaths int
	// StaleEntries were dropped because the system of record has no such snippet.
	StaleEntries int
}

// SnippetIDs returns the ids of entries in order, without duplicates.
func SnippetIDs(entries []*ResultEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.SnippetID]; ok {
			continue
		}
		seen[e.SnippetID] = struct{}{}
		ids = append(ids, e.SnippetID)
	}
	return ids
}

func cloneHighlights(h map[string][]string) map[string][]string {
	if h == nil {
		return nil
	}
	out := maps.Clone(h)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}
