package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSnippets(t *testing.T, s *SQLiteStore, snippets ...*Snippet) {
	t.Helper()
	for _, sn := range snippets {
		require.NoError(t, s.SaveSnippet(context.Background(), sn))
	}
}

func snippetIDs(snippets []*Snippet) []string {
	ids := make([]string, len(snippets))
	for i, sn := range snippets {
		ids[i] = sn.ID
	}
	sort.Strings(ids)
	return ids
}

func TestSQLiteStore_GetSnippets_ReturnsOnlyExisting(t *testing.T) {
	// Given: two stored snippets
	s := newTestStore(t)
	seedSnippets(t, s,
		&Snippet{ID: "S1", DisplayName: "Snippet One"},
		&Snippet{ID: "S2"},
	)

	// When: looking up a mix of known, unknown and duplicate ids
	got, err := s.GetSnippets(context.Background(), []string{"S1", "S9", "S2", "S1"})

	// Then: only existing records come back, once each
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, snippetIDs(got))
	for _, sn := range got {
		if sn.ID == "S1" {
			assert.Equal(t, "Snippet One", sn.DisplayName)
		} else {
			assert.Empty(t, sn.DisplayName)
		}
		assert.False(t, sn.CreatedAt.IsZero())
	}
}

func TestSQLiteStore_GetSnippets_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetSnippets(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_GetSnippets_LargeBatch(t *testing.T) {
	// Given: more ids than fit in one IN list
	s := newTestStore(t)
	ids := make([]string, 0, maxBatchParams+20)
	for i := 0; i < maxBatchParams+20; i++ {
		ids = append(ids, fmt.Sprintf("snip-%d", i))
	}
	seedSnippets(t, s, &Snippet{ID: ids[0]}, &Snippet{ID: ids[len(ids)-1]})

	got, err := s.GetSnippets(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteStore_SaveSnippet_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sn := &Snippet{ID: "S1", DisplayName: "old"}
	seedSnippets(t, s, sn)
	created := sn.CreatedAt

	sn.DisplayName = "new"
	require.NoError(t, s.SaveSnippet(ctx, sn))

	got, err := s.GetSnippets(ctx, []string{"S1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].DisplayName)
	assert.WithinDuration(t, created, got[0].CreatedAt, time.Second)
}

func TestSQLiteStore_SaveSnippet_RequiresID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SaveSnippet(context.Background(), &Snippet{}))
	assert.Error(t, s.SaveSnippet(context.Background(), nil))
}

func TestSQLiteStore_DeleteSnippet_CascadesRatings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSnippets(t, s, &Snippet{ID: "S1"})
	require.NoError(t, s.AddRating(ctx, "S1", "u1", 4))

	require.NoError(t, s.DeleteSnippet(ctx, "S1"))
	require.NoError(t, s.DeleteSnippet(ctx, "S1")) // idempotent

	got, err := s.GetSnippets(ctx, []string{"S1"})
	require.NoError(t, err)
	assert.Empty(t, got)

	ratings, err := s.AverageRatings(ctx, []string{"S1"})
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestSQLiteStore_AverageRatings(t *testing.T) {
	// Given: S1 rated by two users, S2 unrated
	s := newTestStore(t)
	ctx := context.Background()
	seedSnippets(t, s, &Snippet{ID: "S1"}, &Snippet{ID: "S2"})
	require.NoError(t, s.AddRating(ctx, "S1", "u1", 4))
	require.NoError(t, s.AddRating(ctx, "S1", "u2", 5))

	// When: a user re-rates
	require.NoError(t, s.AddRating(ctx, "S1", "u2", 5))

	ratings, err := s.AverageRatings(ctx, []string{"S1", "S2", "S1"})

	// Then: only S1 has an aggregate
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, "S1", ratings[0].SnippetID)
	assert.InDelta(t, 4.5, ratings[0].Average, 1e-9)
	assert.Equal(t, 2, ratings[0].Count)
}

func TestSQLiteStore_AddRating_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSnippets(t, s, &Snippet{ID: "S1"})

	assert.ErrorIs(t, s.AddRating(ctx, "S1", "u1", 0), ErrInvalidRating)
	assert.ErrorIs(t, s.AddRating(ctx, "S1", "u1", 5.5), ErrInvalidRating)
	// Unknown snippet violates the foreign key
	assert.Error(t, s.AddRating(ctx, "missing", "u1", 3))
}

func TestSQLiteStore_ListSnippets_Ordered(t *testing.T) {
	s := newTestStore(t)
	seedSnippets(t, s, &Snippet{ID: "b"}, &Snippet{ID: "a"}, &Snippet{ID: "c"})

	got, err := s.ListSnippets(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestSQLiteStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "snippets.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnippet(ctx, &Snippet{ID: "S1", DisplayName: "kept"}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSnippets(ctx, []string{"S1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].DisplayName)
}

func TestSQLiteStore_Closed(t *testing.T) {
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.GetSnippets(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.AverageRatings(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrStoreClosed)
}
