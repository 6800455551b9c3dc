package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/store"
	"github.com/Aman-CERP/snipsearch/internal/telemetry"
)

func TestNewEngine_RequiresReconciler(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestEngine_Search_EmptyTerm(t *testing.T) {
	q := &mockQuerier{}
	e, err := NewEngine(newTestReconciler(t, q, lookupFrom(nil, nil), true))
	require.NoError(t, err)

	_, err = e.Search(context.Background(), "   ", SearchOptions{})

	assert.Equal(t, snerrors.ErrCodeQueryEmpty, snerrors.GetCode(err))
	assert.Equal(t, int32(0), q.metaCalls.Load())
}

func TestEngine_Search_EndToEndWithStore(t *testing.T) {
	// Given: a real store holding S1 and S2 with ratings on S1
	ctx := context.Background()
	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	require.NoError(t, st.SaveSnippet(ctx, &store.Snippet{ID: "S1", Owner: "u", DisplayName: "Snippet One"}))
	require.NoError(t, st.SaveSnippet(ctx, &store.Snippet{ID: "S2", Owner: "u"}))
	require.NoError(t, st.AddRating(ctx, "S1", "alice", 4))
	require.NoError(t, st.AddRating(ctx, "S1", "bob", 5))

	q := &mockQuerier{
		MetaFn: metaHits(metaHit("S1", "", map[string][]string{"description": {"idm"}})),
		FilesFn: metaHits(
			fileHit("S1", "notes.txt", map[string][]string{"content": {"idm"}}),
			fileHit("S2", "a.go", map[string][]string{"content": {"idm"}}),
			fileHit("S9", "gone.txt", map[string][]string{"content": {"idm"}}),
		),
	}
	r := newTestReconciler(t, q, StoreLookup(store.NewCachedLookup(st, 10)), true)
	metrics := telemetry.NewQueryMetrics(nil)
	e, err := NewEngine(r, WithRatings(StoreRatings(st)), WithMetrics(metrics))
	require.NoError(t, err)

	// When: searching
	got, err := e.Search(ctx, "idm", SearchOptions{})

	// Then: names are backfilled, the stale S9 is gone and S1 is rated
	require.NoError(t, err)
	require.Equal(t, []string{"S1", "S2"}, ids(got))
	assert.Equal(t, "Snippet One", got[0].DisplayName)
	assert.Equal(t, "S2", got[1].DisplayName)
	require.NotNil(t, got[0].Rating)
	assert.InDelta(t, 4.5, *got[0].Rating, 1e-9)
	assert.Nil(t, got[1].Rating)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.TotalSearches)
	assert.Equal(t, int64(1), snap.StaleDropped)
}

func TestEngine_Search_LimitAndSkipRatings(t *testing.T) {
	q := &mockQuerier{MetaFn: metaHits(metaHit("A", "a", nil), metaHit("B", "b", nil), metaHit("C", "c", nil))}
	ratingCalls := 0
	ratings := func(context.Context, []string) ([]RatingRecord, error) {
		ratingCalls++
		return nil, nil
	}
	e, err := NewEngine(newTestReconciler(t, q, lookupFrom(nil, nil), false), WithRatings(ratings))
	require.NoError(t, err)

	got, err := e.Search(context.Background(), index.MatchAllTerm, SearchOptions{Limit: 2, SkipRatings: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(got))
	assert.Equal(t, 0, ratingCalls)
}

func TestEngine_Search_FailureReturnsNoResults(t *testing.T) {
	q := &mockQuerier{FilesFn: func(context.Context, index.Query) ([]index.Hit, error) {
		return nil, snerrors.TransportError("down", nil)
	}}
	metrics := telemetry.NewQueryMetrics(nil)
	e, err := NewEngine(newTestReconciler(t, q, lookupFrom(nil, nil), true), WithMetrics(metrics))
	require.NoError(t, err)

	got, err := e.Search(context.Background(), "x", SearchOptions{})

	assert.Nil(t, got)
	assert.Equal(t, snerrors.ErrCodeIndexUnavailable, snerrors.GetCode(err))
	assert.Equal(t, int64(0), metrics.Snapshot().TotalSearches)
}
