package search

import (
	"context"

	"github.com/Aman-CERP/snipsearch/internal/store"
)

// SnippetGetter is the batched read the backfill needs.
// Both *store.SQLiteStore and *store.CachedLookup satisfy it.
type SnippetGetter interface {
	GetSnippets(ctx context.Context, ids []string) ([]*store.Snippet, error)
}

// RatingAverager is the batched read the rating merge needs.
type RatingAverager interface {
	AverageRatings(ctx context.Context, ids []string) ([]*store.Rating, error)
}

// StoreLookup adapts a snippet store into a LookupFunc.
func StoreLookup(s SnippetGetter) LookupFunc {
	return func(ctx context.Context, ids []string) ([]NameRecord, error) {
		snippets, err := s.GetSnippets(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make([]NameRecord, 0, len(snippets))
		for _, sn := range snippets {
			out = append(out, NameRecord{SnippetID: sn.ID, DisplayName: sn.DisplayName})
		}
		return out, nil
	}
}

// StoreRatings adapts a rating store into a RatingFunc.
func StoreRatings(s RatingAverager) RatingFunc {
	return func(ctx context.Context, ids []string) ([]RatingRecord, error) {
		ratings, err := s.AverageRatings(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make([]RatingRecord, 0, len(ratings))
		for _, r := range ratings {
			out = append(out, RatingRecord{SnippetID: r.SnippetID, Average: r.Average, Count: r.Count})
		}
		return out, nil
	}
}
