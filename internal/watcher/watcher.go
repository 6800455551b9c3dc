package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch is emitted.
const DefaultDebounce = 500 * time.Millisecond

// Operation is the kind of change to a blob.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// BlobEvent is a change to one blob of one snippet.
type BlobEvent struct {
	SnippetID string
	// Blob is the slash-separated name inside the snippet folder.
	// Empty when the snippet folder itself changed.
	Blob string
	Op   Operation
	At   time.Time
}

// Key identifies the blob an event is about.
func (e BlobEvent) Key() string {
	return e.SnippetID + "/" + e.Blob
}

// Options configures a BlobWatcher.
type Options struct {
	// Dir contains one folder per snippet.
	Dir string
	// Debounce is the quiet period (default: DefaultDebounce).
	Debounce time.Duration
}

// BlobWatcher reports debounced changes under a blob directory.
type BlobWatcher struct {
	dir       string
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger

	stopOnce sync.Once
}

// New creates a watcher for opts.Dir, creating the directory if needed.
func New(opts Options) (*BlobWatcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &BlobWatcher{
		dir:       filepath.Clean(opts.Dir),
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce),
		logger:    slog.Default(),
	}
	if err := w.addRecursive(w.dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run forwards debounced batches to onChange until ctx is done or Stop is
// called. onChange runs on the Run goroutine.
func (w *BlobWatcher) Run(ctx context.Context, onChange func([]BlobEvent)) error {
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("blob_watcher_error", slog.String("error", err.Error()))

		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			w.logger.Debug("blob_changes",
				slog.Int("events", len(batch)),
				slog.Int("snippets", len(ChangedSnippets(batch))))
			onChange(batch)
		}
	}
}

// Stop releases the fsnotify watcher. Safe to call more than once.
func (w *BlobWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.debouncer.Stop()
		_ = w.fsw.Close()
	})
}

func (w *BlobWatcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.dir, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if ignored(rel) {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if addErr := w.addRecursive(ev.Name); addErr != nil {
				w.logger.Warn("blob_watch_add_failed",
					slog.String("path", ev.Name),
					slog.String("error", addErr.Error()))
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	snippetID, blob, _ := strings.Cut(rel, "/")
	w.debouncer.Add(BlobEvent{SnippetID: snippetID, Blob: blob, Op: op, At: time.Now()})
}

func (w *BlobWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored skips hidden entries and editor scratch files.
func ignored(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	base := rel[strings.LastIndex(rel, "/")+1:]
	return strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp")
}

// ChangedSnippets returns the distinct snippet ids in batch, in order.
func ChangedSnippets(batch []BlobEvent) []string {
	seen := make(map[string]struct{}, len(batch))
	var out []string
	for _, ev := range batch {
		if _, ok := seen[ev.SnippetID]; ok {
			continue
		}
		seen[ev.SnippetID] = struct{}{}
		out = append(out, ev.SnippetID)
	}
	return out
}
