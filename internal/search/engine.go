package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/telemetry"
)

// Searcher runs a full snippet search.
type Searcher interface {
	Search(ctx context.Context, term string, opts SearchOptions) ([]*ResultEntry, error)
}

// SearchOptions configures one search.
type SearchOptions struct {
	// Limit caps the number of results (0 = no cap).
	Limit int

	// SkipRatings leaves Rating unset on every entry.
	SkipRatings bool
}

// Engine composes reconciliation, rating merge and telemetry.
type Engine struct {
	reconciler *Reconciler
	ratings    RatingFunc
	metrics    *telemetry.QueryMetrics
	logger     *slog.Logger
}

// Ensure Engine implements Searcher interface.
var _ Searcher = (*Engine)(nil)

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithRatings enables the rating merge after reconciliation.
func WithRatings(fn RatingFunc) EngineOption {
	return func(e *Engine) {
		e.ratings = fn
	}
}

// WithMetrics sets an optional query metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine around a reconciler.
func NewEngine(reconciler *Reconciler, opts ...EngineOption) (*Engine, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("%w: reconciler is required", ErrNilDependency)
	}
	e := &Engine{
		reconciler: reconciler,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search reconciles both indexes for term and attaches ratings.
// An empty term is rejected; use index.MatchAllTerm to list everything.
func (e *Engine) Search(ctx context.Context, term string, opts SearchOptions) ([]*ResultEntry, error) {
	start := time.Now()

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, snerrors.New(snerrors.ErrCodeQueryEmpty, "search term is empty", nil).
			WithSuggestion(fmt.Sprintf("use %q to list every snippet", index.MatchAllTerm))
	}

	results, stats, err := e.reconciler.reconcile(ctx, term)
	if err != nil {
		e.logger.Warn("search_failed",
			slog.String("term", term),
			slog.String("code", snerrors.GetCode(err)),
			slog.String("error", err.Error()))
		return nil, err
	}

	if e.ratings != nil && !opts.SkipRatings {
		results, err = MergeRatings(ctx, results, e.ratings)
		if err != nil {
			return nil, err
		}
	}

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	latency := time.Since(start)
	e.recordMetrics(term, stats, len(results), latency)

	e.logger.Info("search_complete",
		slog.String("term", term),
		slog.Int("results", len(results)),
		slog.Duration("latency", latency))
	return results, nil
}

func (e *Engine) recordMetrics(term string, stats Stats, resultCount int, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	kind := telemetry.SearchKindTerm
	if index.IsMatchAll(term) {
		kind = telemetry.SearchKindMatchAll
	}
	e.metrics.Record(telemetry.SearchEvent{
		Term:         term,
		Kind:         kind,
		ResultCount:  resultCount,
		StaleDropped: stats.StaleEntries,
		InvalidPaths: stats.InvalidPaths,
		Latency:      latency,
		Timestamp:    time.Now(),
	})
}
