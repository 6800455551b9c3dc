package snippets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/store"
)

// recordingFirer is a mock implementation of Firer.
type recordingFirer struct {
	mu    sync.Mutex
	kinds []index.Kind
}

func (r *recordingFirer) Fire(kind index.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

type fixture struct {
	svc   *Service
	store *store.SQLiteStore
	cache *store.CachedLookup
	firer *recordingFirer
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		store: st,
		cache: store.NewCachedLookup(st, 10),
		firer: &recordingFirer{},
		dir:   t.TempDir(),
	}
	f.svc, err = NewService(st, f.firer,
		WithBlobStore(&FSBlobStore{Dir: f.dir}),
		WithCache(f.cache))
	require.NoError(t, err)
	return f
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestService_SaveWritesRecordAndFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Given: a cached miss that must not survive the write
	_, err := f.cache.GetSnippets(ctx, []string{"S1"})
	require.NoError(t, err)

	// When: saving with one nested file
	err = f.svc.Save(ctx, &store.Snippet{ID: "S1", Owner: "u", DisplayName: "One"}, map[string][]byte{
		"src/main.go": []byte("package main"),
	})

	// Then: record, file and both refreshes
	require.NoError(t, err)
	got, err := f.cache.GetSnippets(ctx, []string{"S1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "One", got[0].DisplayName)

	data, err := os.ReadFile(filepath.Join(f.dir, "S1", "src", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(data))

	assert.Equal(t, []index.Kind{index.KindMetadata, index.KindFileContent}, f.firer.kinds)
}

func TestService_SaveWithoutFilesRefreshesMetadataOnly(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Save(context.Background(), &store.Snippet{ID: "S1", Owner: "u"}, nil))

	assert.Equal(t, []index.Kind{index.KindMetadata}, f.firer.kinds)
}

func TestService_SaveRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Save(ctx, &store.Snippet{}, nil)
	assert.Equal(t, snerrors.ErrCodeInvalidInput, snerrors.GetCode(err))

	err = f.svc.Save(ctx, &store.Snippet{ID: "S1"}, map[string][]byte{"../escape": []byte("x")})
	assert.Equal(t, snerrors.ErrCodeStoreFailed, snerrors.GetCode(err))
	_, statErr := os.Stat(filepath.Join(filepath.Dir(f.dir), "escape"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestService_DeleteRemovesFilesAndRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Save(ctx, &store.Snippet{ID: "S1", Owner: "u"}, map[string][]byte{"a.txt": []byte("a")}))
	f.firer.kinds = nil

	require.NoError(t, f.svc.Delete(ctx, "S1"))

	_, err := os.Stat(filepath.Join(f.dir, "S1"))
	assert.True(t, os.IsNotExist(err))
	got, err := f.store.GetSnippets(ctx, []string{"S1"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []index.Kind{index.KindMetadata, index.KindFileContent}, f.firer.kinds)
}

func TestService_Rate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Save(ctx, &store.Snippet{ID: "S1", Owner: "u"}, nil))
	f.firer.kinds = nil

	require.NoError(t, f.svc.Rate(ctx, "S1", "alice", 4))
	assert.Empty(t, f.firer.kinds, "ratings do not refresh indexes")

	err := f.svc.Rate(ctx, "S1", "alice", 9)
	assert.Equal(t, snerrors.ErrCodeInvalidInput, snerrors.GetCode(err))

	err = f.svc.Rate(ctx, "missing", "alice", 3)
	assert.Equal(t, snerrors.ErrCodeRatingFailed, snerrors.GetCode(err))
}

func TestCleanBlobName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "readme.md", want: "readme.md"},
		{in: "src//main.go", want: "src/main.go"},
		{in: "a/../b.txt", want: "b.txt"},
		{in: "", wantErr: true},
		{in: "../x", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: `a\b`, wantErr: true},
		{in: "src/.git/config", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cleanBlobName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
