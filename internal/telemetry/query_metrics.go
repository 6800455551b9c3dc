// Package telemetry records search patterns for tuning the snippet indexes.
// Data stays in the local database; nothing is reported externally.
package telemetry

import (
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SearchKind distinguishes free-text searches from list-everything searches.
type SearchKind string

const (
	SearchKindTerm     SearchKind = "term"
	SearchKindMatchAll SearchKind = "match_all"
)

// LatencyBucket is one histogram bucket of end-to-end search latency.
type LatencyBucket string

const (
	BucketFast    LatencyBucket = "lt50ms"
	BucketOK      LatencyBucket = "lt200ms"
	BucketSlow    LatencyBucket = "lt1s"
	BucketVSlow   LatencyBucket = "lt5s"
	BucketStalled LatencyBucket = "ge5s"
)

// LatencyToBucket converts a duration to its histogram bucket.
// Searches fan out to a remote service, so the buckets are coarse.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < 50*time.Millisecond:
		return BucketFast
	case d < 200*time.Millisecond:
		return BucketOK
	case d < time.Second:
		return BucketSlow
	case d < 5*time.Second:
		return BucketVSlow
	default:
		return BucketStalled
	}
}

// SearchEvent is one completed search.
type SearchEvent struct {
	Term        string
	Kind        SearchKind
	ResultCount int

	// StaleDropped counts index entries with no system-of-record snippet.
	StaleDropped int
	// InvalidPaths counts file hits with an undecodable storage path.
	InvalidPaths int

	Latency   time.Duration
	Timestamp time.Time
}

// IsZeroResult returns true if the search returned nothing.
func (e SearchEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// RingBuffer keeps the most recent items up to a fixed capacity.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// NewRingBuffer creates a ring buffer (capacity defaults to 100).
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &RingBuffer[T]{items: make([]T, capacity)}
}

// Add appends item, evicting the oldest when full.
func (b *RingBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.next] = item
	b.next++
	if b.next == len(b.items) {
		b.next = 0
		b.full = true
	}
}

// Items returns the contents oldest first.
func (b *RingBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		return slices.Clone(b.items[:b.next])
	}
	return append(slices.Clone(b.items[b.next:]), b.items[:b.next]...)
}

// Len returns the number of items held.
func (b *RingBuffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.items)
	}
	return b.next
}

// ExtractTerms lowercases a search term and splits it into words of at
// least two characters. The match-all token yields nothing.
func ExtractTerms(term string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(term)) {
		if w == "*" || len(w) < 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the in-memory metrics.
type Snapshot struct {
	KindCounts          map[SearchKind]int64    `json:"kind_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultTerms     []string                `json:"zero_result_terms"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalSearches       int64                   `json:"total_searches"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	StaleDropped        int64                   `json:"stale_dropped"`
	InvalidPaths        int64                   `json:"invalid_paths"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of searches that found nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalSearches == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalSearches) * 100
}

// Store persists flushed metrics.
type Store interface {
	// AddDailyCounts adds kind and latency counts to the totals for date.
	AddDailyCounts(date string, kinds map[SearchKind]int64, latencies map[LatencyBucket]int64) error

	// AddTermCounts adds to the running term frequencies.
	AddTermCounts(terms map[string]int64) error

	// AddZeroResultTerms appends to the bounded zero-result log.
	AddZeroResultTerms(terms []string, at time.Time) error

	// TopTerms returns the most searched terms.
	TopTerms(limit int) ([]TermCount, error)

	// RecentZeroResultTerms returns the newest zero-result terms first.
	RecentZeroResultTerms(limit int) ([]string, error)
}

// Config configures a QueryMetrics collector.
type Config struct {
	TopTermsCapacity    int           // distinct terms tracked in memory (default: 100)
	ZeroResultsCapacity int           // zero-result terms kept in memory (default: 100)
	FlushInterval       time.Duration // 0 disables the background flush
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
		FlushInterval:       time.Minute,
	}
}

// pending holds counts recorded since the last flush.
type pending struct {
	kinds     map[SearchKind]int64
	latencies map[LatencyBucket]int64
	terms     map[string]int64
	zero      []string
}

func newPending() pending {
	return pending{
		kinds:     make(map[SearchKind]int64),
		latencies: make(map[LatencyBucket]int64),
		terms:     make(map[string]int64),
	}
}

// QueryMetrics aggregates search events in memory and flushes deltas to a Store.
// Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	kinds        map[SearchKind]int64
	latencies    map[LatencyBucket]int64
	topTerms     *lru.Cache[string, int64]
	zeroResults  *RingBuffer[string]
	total        int64
	zeroCount    int64
	staleDropped int64
	invalidPaths int64
	since        time.Time

	delta  pending
	store  Store
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// NewQueryMetrics creates a collector with the default configuration.
// A nil store keeps metrics in memory only.
func NewQueryMetrics(store Store) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultConfig())
}

// NewQueryMetricsWithConfig creates a collector with cfg.
func NewQueryMetricsWithConfig(store Store, cfg Config) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	m := &QueryMetrics{
		kinds:       make(map[SearchKind]int64),
		latencies:   make(map[LatencyBucket]int64),
		topTerms:    topTerms,
		zeroResults: NewRingBuffer[string](cfg.ZeroResultsCapacity),
		since:       time.Now(),
		delta:       newPending(),
		store:       store,
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.ticker = time.NewTicker(cfg.FlushInterval)
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	defer close(m.done)
	for {
		select {
		case <-m.ticker.C:
			_ = m.Flush()
		case <-m.stop:
			return
		}
	}
}

// Record adds one search event.
func (m *QueryMetrics) Record(ev SearchEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.total++
	m.kinds[ev.Kind]++
	m.delta.kinds[ev.Kind]++

	bucket := LatencyToBucket(ev.Latency)
	m.latencies[bucket]++
	m.delta.latencies[bucket]++

	for _, term := range ExtractTerms(ev.Term) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.delta.terms[term]++
	}

	if ev.IsZeroResult() {
		m.zeroCount++
		m.zeroResults.Add(ev.Term)
		m.delta.zero = append(m.delta.zero, ev.Term)
	}

	m.staleDropped += int64(ev.StaleDropped)
	m.invalidPaths += int64(ev.InvalidPaths)
}

// Snapshot returns the in-memory metrics since the collector started.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	topTerms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	slices.SortStableFunc(topTerms, func(a, b TermCount) int {
		switch {
		case a.Count > b.Count:
			return -1
		case a.Count < b.Count:
			return 1
		default:
			return strings.Compare(a.Term, b.Term)
		}
	})

	kinds := make(map[SearchKind]int64, len(m.kinds))
	for k, v := range m.kinds {
		kinds[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	return &Snapshot{
		KindCounts:          kinds,
		TopTerms:            topTerms,
		ZeroResultTerms:     m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalSearches:       m.total,
		ZeroResultCount:     m.zeroCount,
		StaleDropped:        m.staleDropped,
		InvalidPaths:        m.invalidPaths,
		Since:               m.since,
	}
}

// Flush writes the counts recorded since the previous flush.
// A failed flush keeps nothing; the lost delta is only telemetry.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	d := m.delta
	m.delta = newPending()
	m.mu.Unlock()

	now := time.Now()
	if len(d.kinds) > 0 || len(d.latencies) > 0 {
		if err := m.store.AddDailyCounts(now.Format("2006-01-02"), d.kinds, d.latencies); err != nil {
			return err
		}
	}
	if err := m.store.AddTermCounts(d.terms); err != nil {
		return err
	}
	if len(d.zero) > 0 {
		if err := m.store.AddZeroResultTerms(d.zero, now); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the background flush and writes what is left.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		<-m.done
	}
	return m.Flush()
}
