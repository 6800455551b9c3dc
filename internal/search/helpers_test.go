package search

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/snipsearch/internal/blobpath"
	"github.com/Aman-CERP/snipsearch/internal/index"
)

// mockQuerier is a mock implementation of index.Querier.
type mockQuerier struct {
	mu        sync.Mutex
	MetaFn    func(ctx context.Context, q index.Query) ([]index.Hit, error)
	FilesFn   func(ctx context.Context, q index.Query) ([]index.Hit, error)
	queries   []index.Query
	metaCalls atomic.Int32
	fileCalls atomic.Int32
}

func (m *mockQuerier) Query(ctx context.Context, q index.Query) ([]index.Hit, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()

	switch q.Kind {
	case index.KindMetadata:
		m.metaCalls.Add(1)
		if m.MetaFn != nil {
			return m.MetaFn(ctx, q)
		}
	case index.KindFileContent:
		m.fileCalls.Add(1)
		if m.FilesFn != nil {
			return m.FilesFn(ctx, q)
		}
	}
	return []index.Hit{}, nil
}

func metaHits(hits ...index.Hit) func(context.Context, index.Query) ([]index.Hit, error) {
	return func(context.Context, index.Query) ([]index.Hit, error) { return hits, nil }
}

func metaHit(id, name string, highlights map[string][]string) index.Hit {
	return index.Hit{Kind: index.KindMetadata, SnippetID: id, DisplayName: name, Highlights: highlights}
}

// fileHit builds a file hit whose storage path matches the default layout.
func fileHit(snippetID, blob string, highlights map[string][]string) index.Hit {
	raw := "https://acct.blob.core.windows.net/snippets/files/" + snippetID + "/" + blob
	return index.Hit{
		Kind:        index.KindFileContent,
		StoragePath: blobpath.EncodeToken(raw),
		FileName:    blob,
		Highlights:  highlights,
	}
}

// lookupFrom returns a LookupFunc answering from names and counting calls.
func lookupFrom(names map[string]string, calls *int) LookupFunc {
	return func(_ context.Context, ids []string) ([]NameRecord, error) {
		if calls != nil {
			*calls++
		}
		var out []NameRecord
		for _, id := range ids {
			if name, ok := names[id]; ok {
				out = append(out, NameRecord{SnippetID: id, DisplayName: name})
			}
		}
		return out, nil
	}
}

func ids(entries []*ResultEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SnippetID
	}
	return out
}
