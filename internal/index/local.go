package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/gofrs/flock"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
)

// lockFileName guards a local index directory against a second process.
const lockFileName = ".snipsearch.lock"

// ErrIndexLocked is returned when another process holds the local index.
var ErrIndexLocked = errors.New("local index is in use by another process")

// searchableFields are the fields a free-text term is matched against, per kind.
var searchableFields = map[Kind][]string{
	KindMetadata:    {FieldDisplayName, FieldDescription, FieldReadme},
	KindFileContent: {FieldContent},
}

// LocalConfig configures the embedded bleve backend.
type LocalConfig struct {
	// Path is the directory holding one bleve index per kind.
	// Empty means in-memory indexes (tests, one-shot CLI runs).
	Path string

	// Top caps the number of hits per query (default: 50).
	Top int

	// Crawlers produce the documents for each kind on Refresh.
	Crawlers map[Kind]Crawler
}

// LocalService serves both indexes from bleve, rebuilt by crawlers on Refresh.
type LocalService struct {
	mu       sync.RWMutex
	indexes  map[Kind]bleve.Index
	crawlers map[Kind]Crawler
	lock     *flock.Flock
	top      int
	closed   bool
	logger   *slog.Logger
}

// Verify interface implementation at compile time
var _ Service = (*LocalService)(nil)

// NewLocalService opens (or creates) the metadata and file indexes.
func NewLocalService(cfg LocalConfig) (*LocalService, error) {
	if cfg.Top <= 0 {
		cfg.Top = DefaultTop
	}

	s := &LocalService{
		indexes:  make(map[Kind]bleve.Index, 2),
		crawlers: cfg.Crawlers,
		top:      cfg.Top,
		logger:   slog.Default(),
	}
	if s.crawlers == nil {
		s.crawlers = map[Kind]Crawler{}
	}

	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory %s: %w", cfg.Path, err)
		}
		s.lock = flock.New(filepath.Join(cfg.Path, lockFileName))
		acquired, err := s.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to lock index directory: %w", err)
		}
		if !acquired {
			return nil, fmt.Errorf("%w: %s", ErrIndexLocked, cfg.Path)
		}
	}

	for _, kind := range []Kind{KindMetadata, KindFileContent} {
		var path string
		if cfg.Path != "" {
			path = filepath.Join(cfg.Path, string(kind)+".bleve")
		}
		idx, err := openOrCreate(path)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open %s index: %w", kind, err)
		}
		s.indexes[kind] = idx
	}

	return s, nil
}

// newIndexMapping keeps identity fields unanalyzed so they round-trip intact.
func newIndexMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	m.DefaultMapping.AddFieldMappingsAt(FieldID, kw)
	m.DefaultMapping.AddFieldMappingsAt(FieldStoragePath, kw)
	m.DefaultMapping.AddFieldMappingsAt(FieldStorageName, kw)
	return m
}

// openOrCreate opens the index at path, recreating it when it is corrupt.
// Local indexes are derived data: a fresh Refresh rebuilds them.
func openOrCreate(path string) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(newIndexMapping())
	}

	idx, err := bleve.Open(path)
	switch {
	case err == nil:
		return idx, nil
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		return bleve.New(path, newIndexMapping())
	case errors.Is(err, bleve.ErrorIndexMetaCorrupt), errors.Is(err, bleve.ErrorIndexMetaMissing):
		slog.Warn("local_index_corrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, err)
		}
		slog.Info("local_index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, run refresh"))
		return bleve.New(path, newIndexMapping())
	default:
		return nil, err
	}
}

// Query searches the index for q.Kind. All terms must match (search mode "all").
func (s *LocalService) Query(ctx context.Context, q Query) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, snerrors.TransportError("local index is closed", nil)
	}
	idx, ok := s.indexes[q.Kind]
	if !ok {
		return nil, snerrors.New(snerrors.ErrCodeInvalidIndexKind, fmt.Sprintf("unknown index kind %q", q.Kind), nil)
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), s.top, 0, false)
	req.Fields = []string{"*"}
	if !IsMatchAll(q.Term) && len(q.HighlightFields) > 0 {
		req.Highlight = bleve.NewHighlight()
		for _, f := range q.HighlightFields {
			req.Highlight.AddField(f)
		}
	}

	start := time.Now()
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, snerrors.TransportError(fmt.Sprintf("local %s search failed", q.Kind), err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, dm := range res.Hits {
		hits = append(hits, toHit(q.Kind, dm))
	}

	s.logger.Debug("index_query_complete",
		slog.String("index", string(q.Kind)),
		slog.Int("hits", len(hits)),
		slog.Duration("latency", time.Since(start)))
	return hits, nil
}

// buildQuery turns a term into a conjunction of per-token disjunctions across
// the searchable fields of the kind.
func buildQuery(q Query) query.Query {
	tokens := strings.Fields(q.Term)
	if IsMatchAll(q.Term) || len(tokens) == 0 {
		return bleve.NewMatchAllQuery()
	}

	fields := searchableFields[q.Kind]
	conj := bleve.NewConjunctionQuery()
	for _, tok := range tokens {
		disj := bleve.NewDisjunctionQuery()
		for _, f := range fields {
			mq := bleve.NewMatchQuery(tok)
			mq.SetField(f)
			disj.AddQuery(mq)
		}
		conj.AddQuery(disj)
	}
	return conj
}

func toHit(kind Kind, dm *search.DocumentMatch) Hit {
	h := Hit{Kind: kind}
	if len(dm.Fragments) > 0 {
		h.Highlights = make(map[string][]string, len(dm.Fragments))
		for field, frags := range dm.Fragments {
			h.Highlights[field] = append([]string(nil), frags...)
		}
	}

	switch kind {
	case KindMetadata:
		h.SnippetID = dm.ID
		h.DisplayName = stringField(dm, FieldDisplayName)
	case KindFileContent:
		h.StoragePath = stringField(dm, FieldStoragePath)
		h.FileName = stringField(dm, FieldStorageName)
	}
	return h
}

func stringField(dm *search.DocumentMatch, name string) string {
	if v, ok := dm.Fields[name].(string); ok {
		return v
	}
	return ""
}

// Refresh re-crawls the source of kind and replaces the index contents.
func (s *LocalService) Refresh(ctx context.Context, kind Kind) error {
	crawler, ok := s.crawlers[kind]
	if !ok {
		return snerrors.New(snerrors.ErrCodeInvalidIndexKind, fmt.Sprintf("no crawler configured for %q", kind), nil)
	}

	// Crawl outside the lock so queries keep flowing.
	docs, err := crawler.Crawl(ctx)
	if err != nil {
		return snerrors.New(snerrors.ErrCodeRefreshFailed, fmt.Sprintf("crawl %s", kind), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return snerrors.New(snerrors.ErrCodeRefreshFailed, "local index is closed", nil)
	}
	idx := s.indexes[kind]

	existing, err := allIDs(ctx, idx)
	if err != nil {
		return snerrors.New(snerrors.ErrCodeRefreshFailed, fmt.Sprintf("list %s documents", kind), err)
	}

	batch := idx.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, d.Fields); err != nil {
			return snerrors.New(snerrors.ErrCodeRefreshFailed, fmt.Sprintf("index document %s", d.ID), err)
		}
		delete(existing, d.ID)
	}
	for id := range existing {
		batch.Delete(id)
	}
	if err := idx.Batch(batch); err != nil {
		return snerrors.New(snerrors.ErrCodeRefreshFailed, fmt.Sprintf("apply %s batch", kind), err)
	}

	s.logger.Info("local_index_refreshed",
		slog.String("index", string(kind)),
		slog.Int("documents", len(docs)),
		slog.Int("removed", len(existing)))
	return nil
}

func allIDs(ctx context.Context, idx bleve.Index) (map[string]struct{}, error) {
	count, err := idx.DocCount()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, count)
	if count == 0 {
		return ids, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, dm := range res.Hits {
		ids[dm.ID] = struct{}{}
	}
	return ids, nil
}

// DocCount reports the number of documents in the index for kind.
func (s *LocalService) DocCount(kind Kind) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[kind]
	if !ok || s.closed {
		return 0, fmt.Errorf("index %q unavailable", kind)
	}
	return idx.DocCount()
}

// Close closes both indexes and releases the directory lock.
func (s *LocalService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for kind, idx := range s.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s index: %w", kind, err))
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release index lock: %w", err))
		}
	}
	return errors.Join(errs...)
}
