package window

import "time"

// bucket is a single ring slot covering [start, start+width).
type bucket struct {
	start time.Time
	good  uint64
	total uint64
}

// ring is a fixed-size circular buffer of buckets covering one window
// length. Slots are reset lazily when a newer timestamp claims them, which
// gives O(1) amortized eviction with no background sweep. Readers filter by
// bucket start, so a slot left over from a previous revolution is never
// counted.
type ring struct {
	width   time.Duration
	buckets []bucket
	latest  time.Time // start of the newest bucket written
}

func newRing(length time.Duration, count int) *ring {
	width := length / time.Duration(count)
	if width < time.Second {
		width = time.Second
		count = int(length / width)
	}
	return &ring{
		width:   width,
		buckets: make([]bucket, count),
	}
}

// length is the total span the ring retains.
func (r *ring) length() time.Duration {
	return r.width * time.Duration(len(r.buckets))
}

// record adds one observation to the bucket covering ts. It returns false
// when ts is older than the retained range and the observation was dropped.
func (r *ring) record(ts time.Time, good bool) bool {
	start := ts.Truncate(r.width)

	if !r.latest.IsZero() {
		oldest := r.latest.Add(-r.width * time.Duration(len(r.buckets)-1))
		if start.Before(oldest) {
			return false
		}
	}

	idx := int((start.UnixNano() / int64(r.width)) % int64(len(r.buckets)))
	b := &r.buckets[idx]

	if !b.start.Equal(start) {
		if b.start.After(start) {
			// Slot already holds a newer revolution.
			return false
		}
		b.start = start
		b.good = 0
		b.total = 0
	}

	b.total++
	if good {
		b.good++
	}
	if start.After(r.latest) {
		r.latest = start
	}
	return true
}

// snapshot copies the current bucket counts.
func (r *ring) snapshot() []bucket {
	out := make([]bucket, len(r.buckets))
	copy(out, r.buckets)
	return out
}

// sumBuckets totals all buckets overlapping (cutoff, now]. Buckets from a
// previous revolution fall before the cutoff and are excluded.
func sumBuckets(buckets []bucket, width time.Duration, cutoff time.Time) (good, total uint64) {
	for _, b := range buckets {
		if b.start.IsZero() {
			continue
		}
		if !b.start.Add(width).After(cutoff) {
			continue
		}
		good += b.good
		total += b.total
	}
	return good, total
}
