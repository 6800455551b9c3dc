package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/snipsearch/internal/blobpath"
	"github.com/Aman-CERP/snipsearch/internal/store"
)

// DefaultMaxBlobSize skips blobs larger than this when crawling (1MB).
const DefaultMaxBlobSize = 1 << 20

// Document is one record handed to a local index.
type Document struct {
	ID     string
	Fields map[string]any
}

// Crawler produces the full document set for one index.
type Crawler interface {
	Crawl(ctx context.Context) ([]Document, error)
}

// SnippetLister is the slice of the snippet store the metadata crawler needs.
type SnippetLister interface {
	ListSnippets(ctx context.Context) ([]*store.Snippet, error)
}

// MetadataCrawler indexes snippet records from the system of record.
type MetadataCrawler struct {
	Store SnippetLister
}

// Crawl implements Crawler.
func (c *MetadataCrawler) Crawl(ctx context.Context) ([]Document, error) {
	snippets, err := c.Store.ListSnippets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}

	docs := make([]Document, 0, len(snippets))
	for _, sn := range snippets {
		fields := map[string]any{
			FieldID:          sn.ID,
			FieldDescription: sn.Description,
			FieldReadme:      sn.Readme,
		}
		// Absent rather than empty, like the hosted index.
		if sn.DisplayName != "" {
			fields[FieldDisplayName] = sn.DisplayName
		}
		docs = append(docs, Document{ID: sn.ID, Fields: fields})
	}
	return docs, nil
}

// BlobCrawler indexes every blob under Root/Container/Prefix/<snippet>/.
type BlobCrawler struct {
	Root      string
	Container string
	Prefix    []string
	Layout    blobpath.Layout

	// Scheme and Host form the storage path (default: file://local).
	Scheme string
	Host   string

	// MaxSize skips larger blobs (default: DefaultMaxBlobSize).
	MaxSize int64
}

// Dir is the directory whose children are snippet folders.
func (c *BlobCrawler) Dir() string {
	parts := append([]string{c.Root, c.Container}, c.Prefix...)
	return filepath.Join(parts...)
}

// Crawl implements Crawler.
func (c *BlobCrawler) Crawl(ctx context.Context) ([]Document, error) {
	if err := c.Layout.Validate(); err != nil {
		return nil, err
	}
	scheme, host := c.Scheme, c.Host
	if scheme == "" {
		scheme = "file"
	}
	if host == "" {
		host = "local"
	}
	maxSize := c.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxBlobSize
	}

	base := c.Dir()
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob directory %s: %w", base, err)
	}

	var docs []Document
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		snippetID := entry.Name()
		snippetDir := filepath.Join(base, snippetID)

		walkErr := filepath.WalkDir(snippetDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() > maxSize {
				slog.Debug("blob_skipped_too_large",
					slog.String("path", path),
					slog.Int64("size", info.Size()))
				return nil
			}

			rel, err := filepath.Rel(snippetDir, path)
			if err != nil {
				return err
			}
			blobName := filepath.ToSlash(rel)

			p, err := c.Layout.Build(scheme, host, c.Container, c.Prefix, snippetID, blobName)
			if err != nil {
				return err
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			encoded := p.Encode()
			docs = append(docs, Document{
				ID: encoded,
				Fields: map[string]any{
					FieldContent:     string(content),
					FieldStoragePath: encoded,
					FieldStorageName: blobBase(blobName),
				},
			})
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("crawl snippet %s: %w", snippetID, walkErr)
		}
	}

	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// blobBase is the last segment of a blob name, as the storage service reports it.
func blobBase(blobName string) string {
	if i := strings.LastIndex(blobName, "/"); i >= 0 {
		return blobName[i+1:]
	}
	return blobName
}
