// Package snippets handles snippet writes: it updates the system of record
// and the blob store, then asks the search indexes to catch up.
package snippets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/store"
)

// Firer starts a background index refresh. *index.Trigger satisfies it.
type Firer interface {
	Fire(kind index.Kind)
}

// Invalidator drops cached records. *store.CachedLookup satisfies it.
type Invalidator interface {
	Invalidate(ids ...string)
}

// Store is the system of record as the service uses it.
type Store interface {
	SaveSnippet(ctx context.Context, s *store.Snippet) error
	DeleteSnippet(ctx context.Context, id string) error
	AddRating(ctx context.Context, snippetID, userID string, value float64) error
}

// Service applies snippet mutations.
type Service struct {
	store   Store
	blobs   BlobStore
	refresh Firer
	cache   Invalidator
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBlobStore enables file writes.
func WithBlobStore(b BlobStore) Option {
	return func(s *Service) {
		s.blobs = b
	}
}

// WithCache invalidates cached records after writes.
func WithCache(c Invalidator) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// NewService creates a Service. refresh may be nil to skip index refreshes.
func NewService(st Store, refresh Firer, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("snippet store is required")
	}
	s := &Service{store: st, refresh: refresh, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save stores a snippet and its files, then refreshes the metadata index and,
// when files were written, the file-content index.
func (s *Service) Save(ctx context.Context, sn *store.Snippet, files map[string][]byte) error {
	if sn == nil || strings.TrimSpace(sn.ID) == "" {
		return snerrors.ValidationError("snippet id is required", nil)
	}
	if len(files) > 0 && s.blobs == nil {
		return snerrors.ValidationError("no blob store configured for snippet files", nil)
	}

	if err := s.store.SaveSnippet(ctx, sn); err != nil {
		return snerrors.New(snerrors.ErrCodeStoreFailed, "save snippet", err)
	}
	s.invalidate(sn.ID)
	s.fire(index.KindMetadata)

	if len(files) == 0 {
		return nil
	}
	for name, data := range files {
		if err := s.blobs.WriteBlob(ctx, sn.ID, name, data); err != nil {
			// The metadata write stands; refresh what did land.
			s.fire(index.KindFileContent)
			return snerrors.New(snerrors.ErrCodeStoreFailed, fmt.Sprintf("write file %s", name), err)
		}
	}
	s.fire(index.KindFileContent)

	s.logger.Info("snippet_saved",
		slog.String("snippet_id", sn.ID),
		slog.Int("files", len(files)))
	return nil
}

// Delete removes a snippet, its ratings and its files, then refreshes both indexes.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return snerrors.ValidationError("snippet id is required", nil)
	}
	if err := s.store.DeleteSnippet(ctx, id); err != nil {
		return snerrors.New(snerrors.ErrCodeStoreFailed, "delete snippet", err)
	}
	s.invalidate(id)
	s.fire(index.KindMetadata)

	if s.blobs != nil {
		if err := s.blobs.RemoveSnippet(ctx, id); err != nil {
			s.fire(index.KindFileContent)
			return snerrors.New(snerrors.ErrCodeStoreFailed, "remove snippet files", err)
		}
		s.fire(index.KindFileContent)
	}

	s.logger.Info("snippet_deleted", slog.String("snippet_id", id))
	return nil
}

// Rate records userID's rating of a snippet. Ratings live outside the
// indexes, so no refresh is needed.
func (s *Service) Rate(ctx context.Context, snippetID, userID string, value float64) error {
	if strings.TrimSpace(snippetID) == "" || strings.TrimSpace(userID) == "" {
		return snerrors.ValidationError("snippet id and user id are required", nil)
	}
	if err := s.store.AddRating(ctx, snippetID, userID, value); err != nil {
		if errors.Is(err, store.ErrInvalidRating) {
			return snerrors.ValidationError(err.Error(), err).
				WithSuggestion(fmt.Sprintf("use a value between %.0f and %.0f", store.MinRating, store.MaxRating))
		}
		return snerrors.New(snerrors.ErrCodeRatingFailed, "add rating", err).
			WithDetail("snippet_id", snippetID)
	}
	s.logger.Debug("snippet_rated",
		slog.String("snippet_id", snippetID),
		slog.Float64("value", value))
	return nil
}

func (s *Service) fire(kind index.Kind) {
	if s.refresh != nil {
		s.refresh.Fire(kind)
	}
}

func (s *Service) invalidate(id string) {
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
}
