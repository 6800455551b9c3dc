package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces events for the same blob within a window.
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE cancels out
//   - DELETE then CREATE becomes MODIFY
//   - anything else keeps the latest operation
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]BlobEvent
	order   []string
	timer   *time.Timer
	output  chan []BlobEvent
	stopped bool
}

// NewDebouncer creates a debouncer that emits a batch once no event has
// arrived for window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]BlobEvent),
		output:  make(chan []BlobEvent, 8),
	}
}

// Add records an event and restarts the window.
func (d *Debouncer) Add(ev BlobEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	key := ev.Key()
	if prev, ok := d.pending[key]; ok {
		merged, keep := coalesce(prev, ev)
		if keep {
			d.pending[key] = merged
		} else {
			delete(d.pending, key)
		}
	} else {
		d.pending[key] = ev
		d.order = append(d.order, key)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(prev, next BlobEvent) (BlobEvent, bool) {
	switch {
	case prev.Op == OpCreate && next.Op == OpModify:
		return prev, true
	case prev.Op == OpCreate && next.Op == OpDelete:
		return BlobEvent{}, false
	case prev.Op == OpDelete && next.Op == OpCreate:
		next.Op = OpModify
		return next, true
	default:
		return next, true
	}
}

// flush emits pending events in first-seen order.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	batch := make([]BlobEvent, 0, len(d.pending))
	for _, key := range d.order {
		if ev, ok := d.pending[key]; ok {
			batch = append(batch, ev)
		}
	}
	d.pending = make(map[string]BlobEvent)
	d.order = d.order[:0]
	if len(batch) == 0 {
		return
	}

	select {
	case d.output <- batch:
	default:
		slog.Warn("blob_debouncer_full", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []BlobEvent {
	return d.output
}

// Stop discards pending events and closes Output. Safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
