package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/snipsearch/internal/blobpath"
	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
	"github.com/Aman-CERP/snipsearch/internal/index"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	// Layout locates the snippet id inside a decoded storage path.
	Layout blobpath.Layout

	// Parallel issues both index queries at once. Otherwise the metadata
	// query runs first and a failure skips the file-content query.
	Parallel bool

	// Timeout bounds a whole reconciliation (0 = caller's deadline only).
	Timeout time.Duration
}

// DefaultReconcilerConfig returns the default configuration.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Layout:   blobpath.DefaultLayout(),
		Parallel: true,
		Timeout:  10 * time.Second,
	}
}

// Reconciler turns one search term into one deduplicated result set.
type Reconciler struct {
	querier index.Querier
	lookup  LookupFunc
	config  ReconcilerConfig
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler over both indexes of querier.
func NewReconciler(querier index.Querier, lookup LookupFunc, config ReconcilerConfig) (*Reconciler, error) {
	if querier == nil {
		return nil, fmt.Errorf("%w: index querier is required", ErrNilDependency)
	}
	if lookup == nil {
		return nil, fmt.Errorf("%w: lookup function is required", ErrNilDependency)
	}
	if err := config.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage layout: %w", err)
	}
	return &Reconciler{
		querier: querier,
		lookup:  lookup,
		config:  config,
		logger:  slog.Default(),
	}, nil
}

// Reconcile queries both indexes for term, merges the hits by snippet id and
// backfills missing display names. Any query or lookup failure fails the whole
// call and no partial results are returned.
func (r *Reconciler) Reconcile(ctx context.Context, term string) ([]*ResultEntry, error) {
	entries, _, err := r.reconcile(ctx, term)
	return entries, err
}

func (r *Reconciler) reconcile(ctx context.Context, term string) ([]*ResultEntry, Stats, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	var stats Stats
	metaHits, fileHits, err := r.fetch(ctx, term)
	if err != nil {
		return nil, stats, err
	}
	stats.MetadataHits = len(metaHits)
	stats.FileHits = len(fileHits)

	merged := r.merge(metaHits, fileHits, &stats)

	named, err := Backfill(ctx, merged, r.lookup)
	if err != nil {
		return nil, stats, err
	}
	stats.StaleEntries = len(merged) - len(named)

	r.logger.Debug("reconcile_complete",
		slog.String("term", term),
		slog.Int("metadata_hits", stats.MetadataHits),
		slog.Int("file_hits", stats.FileHits),
		slog.Int("folded", stats.FoldedFileHits),
		slog.Int("invalid_paths", stats.InvalidPaths),
		slog.Int("stale", stats.StaleEntries),
		slog.Int("results", len(named)))
	return named, stats, nil
}

// fetch runs the two index queries. In parallel mode the metadata error is
// preferred when both fail, matching sequential behavior.
func (r *Reconciler) fetch(ctx context.Context, term string) (metaHits, fileHits []index.Hit, err error) {
	metaQuery := index.Query{
		Kind:            index.KindMetadata,
		Term:            term,
		HighlightFields: index.MetadataHighlightFields,
	}
	fileQuery := index.Query{
		Kind:            index.KindFileContent,
		Term:            term,
		HighlightFields: index.FileHighlightFields,
	}

	if !r.config.Parallel {
		metaHits, err = r.querier.Query(ctx, metaQuery)
		if err != nil {
			return nil, nil, err
		}
		fileHits, err = r.querier.Query(ctx, fileQuery)
		if err != nil {
			return nil, nil, err
		}
		return metaHits, fileHits, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var metaErr, fileErr error
	g.Go(func() error {
		metaHits, metaErr = r.querier.Query(gctx, metaQuery)
		return metaErr
	})
	g.Go(func() error {
		fileHits, fileErr = r.querier.Query(gctx, fileQuery)
		return fileErr
	})
	_ = g.Wait()

	// A failed file query cancels gctx; the metadata query then only reports
	// that cancellation, so the file error is the one to surface.
	if fileErr != nil && ctx.Err() == nil && errors.Is(metaErr, context.Canceled) {
		return nil, nil, fileErr
	}
	if metaErr != nil {
		return nil, nil, metaErr
	}
	if fileErr != nil {
		return nil, nil, fileErr
	}
	return metaHits, fileHits, nil
}

// merge builds a fresh collection from the hits. Metadata entries keep index
// order; entries promoted from file hits follow in encounter order.
func (r *Reconciler) merge(metaHits, fileHits []index.Hit, stats *Stats) []*ResultEntry {
	entries := make([]*ResultEntry, 0, len(metaHits)+len(fileHits))
	byID := make(map[string]*ResultEntry, len(metaHits)+len(fileHits))

	for _, h := range metaHits {
		if h.SnippetID == "" {
			r.logger.Warn("metadata_hit_without_id")
			continue
		}
		if existing, ok := byID[h.SnippetID]; ok {
			// Same snippet twice from one index: keep the first, fill gaps.
			for field, frags := range h.Highlights {
				if _, has := existing.Highlights[field]; !has && len(frags) > 0 {
					if existing.Highlights == nil {
						existing.Highlights = map[string][]string{}
					}
					existing.Highlights[field] = slices.Clone(frags)
				}
			}
			continue
		}
		e := &ResultEntry{
			SnippetID:   h.SnippetID,
			DisplayName: h.DisplayName,
			Highlights:  cloneHighlights(h.Highlights),
			Origin:      OriginMetadata,
		}
		entries = append(entries, e)
		byID[e.SnippetID] = e
	}

	for _, h := range fileHits {
		p, err := r.config.Layout.Decode(h.StoragePath)
		if err != nil {
			stats.InvalidPaths++
			r.logger.Warn("file_hit_invalid_storage_path",
				slog.String("code", snerrors.ErrCodeInvalidStoragePath),
				slog.String("storage_path", h.StoragePath),
				slog.String("error", err.Error()))
			continue
		}

		blob := h.FileName
		if blob == "" {
			blob = p.BlobName
		}

		if existing, ok := byID[p.SnippetID]; ok {
			stats.FoldedFileHits++
			if frags := h.Highlights[index.FieldContent]; existing.HasHighlights() && len(frags) > 0 {
				existing.Highlights[fileHighlightKey(blob)] = slices.Clone(frags)
			}
			if !slices.Contains(existing.Files, blob) {
				existing.Files = append(existing.Files, blob)
			}
			continue
		}

		e := &ResultEntry{
			SnippetID:  p.SnippetID,
			Highlights: cloneHighlights(h.Highlights),
			Files:      []string{blob},
			Origin:     OriginFile,
		}
		entries = append(entries, e)
		byID[e.SnippetID] = e
	}

	return entries
}

// fileHighlightKey names a file's highlight entry after its blob. Blobs that
// share a name with a metadata field get a "file:" prefix so the field's own
// fragments are kept.
func fileHighlightKey(blob string) string {
	if slices.Contains(index.MetadataHighlightFields, blob) {
		return "file:" + blob
	}
	return blob
}
