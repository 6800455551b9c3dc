package search

import (
	"context"
	"log/slog"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
)

// Backfill fills in missing display names with one batched lookup.
//
// Entries whose id the lookup does not return are stale index entries and are
// dropped. A record without a display name falls back to the id. When every
// entry is already named, no lookup is made and entries is returned as is.
// Modified entries are copies; the input is never changed.
func Backfill(ctx context.Context, entries []*ResultEntry, lookup LookupFunc) ([]*ResultEntry, error) {
	missing := make([]string, 0)
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.DisplayName != "" {
			continue
		}
		if _, ok := seen[e.SnippetID]; ok {
			continue
		}
		seen[e.SnippetID] = struct{}{}
		missing = append(missing, e.SnippetID)
	}
	if len(missing) == 0 {
		return entries, nil
	}

	records, err := lookup(ctx, missing)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, snerrors.LookupError("display-name lookup failed", err)
	}

	names := make(map[string]string, len(records))
	for _, rec := range records {
		if _, asked := seen[rec.SnippetID]; !asked {
			continue
		}
		name := rec.DisplayName
		if name == "" {
			name = rec.SnippetID
		}
		names[rec.SnippetID] = name
	}

	out := make([]*ResultEntry, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if e.DisplayName != "" {
			out = append(out, e)
			continue
		}
		name, ok := names[e.SnippetID]
		if !ok {
			dropped++
			continue
		}
		c := e.Clone()
		c.DisplayName = name
		out = append(out, c)
	}

	if dropped > 0 {
		slog.Debug("stale_entries_dropped",
			slog.Int("count", dropped),
			slog.Int("looked_up", len(missing)))
	}
	return out, nil
}
