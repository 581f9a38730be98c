// Package window maintains rolling good/total counts in fixed-size ring
// buffers, sharded per (service, sli) pair.
package window

import (
	"sort"
	"sync"
	"time"

	"github.com/slogate/slogate/internal/metrics"
)

// DefaultBucketsPerWindow divides each window into this many ring slots
// unless that would make slots narrower than one second.
const DefaultBucketsPerWindow = 288

// MaxFutureSkew bounds how far ahead of the engine clock an observation
// timestamp may run. Anything further ahead is dropped as out of range;
// otherwise one misdated event would advance the rings and evict every
// retained bucket.
const MaxFutureSkew = 2 * time.Minute

// Spec describes one configured window length.
type Spec struct {
	Length  time.Duration
	Buckets int
}

type shardKey struct {
	service string
	sli     string
}

// shard owns the rings for one (service, sli) pair. Writes within a shard
// are serialized by its mutex; reads copy bucket counts under the lock and
// sum outside it.
type shard struct {
	mu    sync.Mutex
	rings map[time.Duration]*ring
}

// Aggregator maintains one shard per (service, sli) pair for a fixed set of
// window lengths. Memory is bounded by shards x windows x buckets,
// independent of event volume.
type Aggregator struct {
	mu     sync.RWMutex
	shards map[shardKey]*shard
	specs  []Spec
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an aggregator for the given window lengths. Duplicate lengths
// are collapsed; a non-positive bucket count falls back to the default.
func New(windows []time.Duration, bucketsPerWindow int, opts ...Option) *Aggregator {
	if bucketsPerWindow <= 0 {
		bucketsPerWindow = DefaultBucketsPerWindow
	}

	seen := make(map[time.Duration]bool)
	var specs []Spec
	for _, w := range windows {
		if w <= 0 || seen[w] {
			continue
		}
		seen[w] = true
		specs = append(specs, Spec{Length: w, Buckets: bucketsPerWindow})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Length < specs[j].Length })

	a := &Aggregator{
		shards: make(map[shardKey]*shard),
		specs:  specs,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Windows returns the configured window specs.
func (a *Aggregator) Windows() []Spec {
	out := make([]Spec, len(a.specs))
	copy(out, a.specs)
	return out
}

// HasWindow reports whether the given length is configured.
func (a *Aggregator) HasWindow(length time.Duration) bool {
	for _, s := range a.specs {
		if s.Length == length {
			return true
		}
	}
	return false
}

// Record appends one observation to the bucket covering ts in every
// configured window. A timestamp outside every retained range, or more
// than MaxFutureSkew ahead of the clock, is a no-op that increments the
// drop counter; it never fails.
func (a *Aggregator) Record(service, sli string, ts time.Time, good bool) {
	if ts.After(a.now().Add(MaxFutureSkew)) {
		metrics.LateEventsDropped.WithLabelValues(service, sli).Inc()
		return
	}

	sh := a.shard(service, sli)

	sh.mu.Lock()
	accepted := false
	for _, r := range sh.rings {
		if r.record(ts, good) {
			accepted = true
		}
	}
	sh.mu.Unlock()

	if !accepted {
		metrics.LateEventsDropped.WithLabelValues(service, sli).Inc()
	}
}

// Ratio sums all non-evicted buckets for the window and returns the raw
// counts. (0, 0) means no data; callers must treat that as insufficient
// data, not as a ratio of 1.0 or 0.0.
func (a *Aggregator) Ratio(service, sli string, window time.Duration) (good, total uint64) {
	a.mu.RLock()
	sh := a.shards[shardKey{service, sli}]
	a.mu.RUnlock()
	if sh == nil {
		return 0, 0
	}

	sh.mu.Lock()
	r := sh.rings[window]
	if r == nil {
		sh.mu.Unlock()
		return 0, 0
	}
	buckets := r.snapshot()
	width := r.width
	sh.mu.Unlock()

	cutoff := a.now().Add(-window)
	return sumBuckets(buckets, width, cutoff)
}

// Reset discards all accumulated buckets for a (service, sli) pair. Used on
// explicit config reload when a target was redefined; the resulting
// discontinuity is documented behavior.
func (a *Aggregator) Reset(service, sli string) {
	a.mu.Lock()
	delete(a.shards, shardKey{service, sli})
	a.mu.Unlock()
}

// shard returns the shard for a pair, creating it on first use.
func (a *Aggregator) shard(service, sli string) *shard {
	key := shardKey{service, sli}

	a.mu.RLock()
	sh := a.shards[key]
	a.mu.RUnlock()
	if sh != nil {
		return sh
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if sh = a.shards[key]; sh != nil {
		return sh
	}

	sh = &shard{rings: make(map[time.Duration]*ring, len(a.specs))}
	for _, spec := range a.specs {
		sh.rings[spec.Length] = newRing(spec.Length, spec.Buckets)
	}
	a.shards[key] = sh
	return sh
}
