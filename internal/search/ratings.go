package search

import (
	"context"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
)

// MergeRatings fetches averages for the unique ids of entries in one call and
// overlays them by id. Entries without a rating keep a nil Rating.
func MergeRatings(ctx context.Context, entries []*ResultEntry, fetch RatingFunc) ([]*ResultEntry, error) {
	ids := SnippetIDs(entries)
	if len(ids) == 0 {
		return entries, nil
	}

	records, err := fetch(ctx, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, snerrors.New(snerrors.ErrCodeRatingFailed, "rating lookup failed", err)
	}

	// Unrequested ids would otherwise be appended as nameless entries.
	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	source := make([]*ResultEntry, 0, len(records))
	for _, rec := range records {
		if _, ok := requested[rec.SnippetID]; !ok {
			continue
		}
		avg := rec.Average
		source = append(source, &ResultEntry{
			SnippetID:   rec.SnippetID,
			Rating:      &avg,
			RatingCount: rec.Count,
		})
	}

	return MergeByKey(entries, source,
		func(e *ResultEntry) string { return e.SnippetID },
		overlayRating,
	), nil
}

// overlayRating replaces *dst with a copy carrying src's rating.
func overlayRating(dst **ResultEntry, src *ResultEntry) {
	c := (*dst).Clone()
	if src.Rating != nil {
		r := *src.Rating
		c.Rating = &r
	}
	c.RatingCount = src.RatingCount
	*dst = c
}
