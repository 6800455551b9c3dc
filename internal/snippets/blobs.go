package snippets

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BlobStore holds the files of each snippet.
type BlobStore interface {
	WriteBlob(ctx context.Context, snippetID, name string, data []byte) error
	RemoveSnippet(ctx context.Context, snippetID string) error
}

// FSBlobStore keeps blobs on disk as Dir/<snippet>/<blob name>.
// Dir matches the directory the file-content crawler and watcher use.
type FSBlobStore struct {
	Dir string
}

// Verify interface implementation at compile time
var _ BlobStore = (*FSBlobStore)(nil)

// WriteBlob writes data atomically via a temp file and rename.
func (s *FSBlobStore) WriteBlob(ctx context.Context, snippetID, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validSegment(snippetID); err != nil {
		return fmt.Errorf("snippet id: %w", err)
	}
	clean, err := cleanBlobName(name)
	if err != nil {
		return err
	}

	dst := filepath.Join(s.Dir, snippetID, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".blob-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write blob %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close blob %s: %w", clean, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename blob %s: %w", clean, err)
	}
	return nil
}

// RemoveSnippet deletes every blob of a snippet. Missing folders are fine.
func (s *FSBlobStore) RemoveSnippet(ctx context.Context, snippetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validSegment(snippetID); err != nil {
		return fmt.Errorf("snippet id: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(s.Dir, snippetID)); err != nil {
		return fmt.Errorf("remove snippet %s blobs: %w", snippetID, err)
	}
	return nil
}

// cleanBlobName normalizes a slash-separated blob name and rejects escapes.
func cleanBlobName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("blob name is required")
	}
	if strings.Contains(name, "\\") || path.IsAbs(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	for _, part := range strings.Split(clean, "/") {
		if strings.HasPrefix(part, ".") {
			return "", fmt.Errorf("blob name %q has a hidden segment", name)
		}
	}
	return clean, nil
}

func validSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid path segment %q", s)
	}
	return nil
}
