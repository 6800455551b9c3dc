// Package watcher watches the local blob directory and reports which
// snippets had files change, so the file-content index can be refreshed.
//
// Events are debounced: editors and bulk copies emit bursts of writes, and a
// burst should cause one refresh, not dozens.
//
// Usage:
//
//	w, err := watcher.New(watcher.Options{Dir: blobDir})
//	if err != nil {
//	    return err
//	}
//	go w.Run(ctx, func(batch []watcher.BlobEvent) {
//	    trigger.Fire(index.KindFileContent)
//	})
package watcher
