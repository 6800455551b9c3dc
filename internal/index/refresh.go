package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
)

// RefreshResult reports the outcome of one fired refresh.
type RefreshResult struct {
	Kind     Kind
	Err      error
	Duration time.Duration
}

// Trigger fires index refreshes in the background after snippet mutations.
// Callers never wait on the outcome; Wait exists for shutdown and tests.
type Trigger struct {
	refresher Refresher
	retry     snerrors.RetryConfig
	timeout   time.Duration
	onResult  func(RefreshResult)
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add in Fire against wg.Wait in Close.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// TriggerOption configures a Trigger.
type TriggerOption func(*Trigger)

// WithRetryConfig overrides the default backoff policy.
func WithRetryConfig(cfg snerrors.RetryConfig) TriggerOption {
	return func(t *Trigger) {
		t.retry = cfg
	}
}

// WithRefreshTimeout bounds each refresh including retries.
func WithRefreshTimeout(d time.Duration) TriggerOption {
	return func(t *Trigger) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithResultHook is called once per fired refresh, after its last attempt.
func WithResultHook(fn func(RefreshResult)) TriggerOption {
	return func(t *Trigger) {
		t.onResult = fn
	}
}

// NewTrigger creates a Trigger bound to r.
func NewTrigger(r Refresher, opts ...TriggerOption) *Trigger {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Trigger{
		refresher: r,
		retry:     snerrors.DefaultRetryConfig(),
		timeout:   2 * time.Minute,
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fire starts a refresh of kind and returns immediately.
func (t *Trigger) Fire(kind Kind) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Debug("index_refresh_dropped", slog.String("index", string(kind)))
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
		defer cancel()

		start := time.Now()
		err := snerrors.Retry(ctx, t.retry, func() error {
			return t.refresher.Refresh(ctx, kind)
		})
		res := RefreshResult{Kind: kind, Err: err, Duration: time.Since(start)}

		if err != nil {
			t.logger.Warn("index_refresh_failed",
				slog.String("index", string(kind)),
				slog.String("error", err.Error()),
				slog.Duration("duration", res.Duration))
		} else {
			t.logger.Info("index_refresh_complete",
				slog.String("index", string(kind)),
				slog.Duration("duration", res.Duration))
		}

		if t.onResult != nil {
			t.onResult(res)
		}
	}()
}

// Run refreshes kind synchronously with the same retry policy as Fire.
func (t *Trigger) Run(ctx context.Context, kind Kind) error {
	return snerrors.Retry(ctx, t.retry, func() error {
		return t.refresher.Refresh(ctx, kind)
	})
}

// Wait blocks until every fired refresh has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// Close cancels in-flight refreshes and waits for them to return.
func (t *Trigger) Close() {
	t.mu.Lock()
	t.closed = true
	t.cancel()
	t.mu.Unlock()
	t.wg.Wait()
}
