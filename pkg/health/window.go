package health

import "time"

// outcomeWindow counts successes and failures over a rolling time window.
//
// The window is divided into fixed-size buckets; buckets that fall outside
// the window are cleared lazily on the next write or read. It is not safe
// for concurrent use; the owning provider state serializes access.
type outcomeWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []outcomeBucket
}

type outcomeBucket struct {
	timestamp time.Time
	successes int64
	failures  int64
}

func newOutcomeWindow(window, bucketSize time.Duration) *outcomeWindow {
	numBuckets := int(window / bucketSize)
	if numBuckets == 0 {
		numBuckets = 1
	}
	return &outcomeWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]outcomeBucket, numBuckets),
	}
}

func (w *outcomeWindow) add(now time.Time, success bool) {
	w.prune(now)
	b := w.findOrCreateBucket(now)
	if success {
		b.successes++
	} else {
		b.failures++
	}
}

// errorRate returns failures / total within the window, or 0 when empty.
func (w *outcomeWindow) errorRate(now time.Time) float64 {
	w.prune(now)

	var total, failures int64
	for i := range w.buckets {
		if w.buckets[i].timestamp.IsZero() {
			continue
		}
		total += w.buckets[i].successes + w.buckets[i].failures
		failures += w.buckets[i].failures
	}
	if total == 0 {
		return 0
	}
	return float64(failures) / float64(total)
}

func (w *outcomeWindow) reset() {
	for i := range w.buckets {
		w.buckets[i] = outcomeBucket{}
	}
}

func (w *outcomeWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() && !w.buckets[i].timestamp.After(cutoff) {
			w.buckets[i] = outcomeBucket{}
		}
	}
}

func (w *outcomeWindow) findOrCreateBucket(now time.Time) *outcomeBucket {
	bucketTime := now.Truncate(w.bucketSize)

	for i := range w.buckets {
		if w.buckets[i].timestamp.Equal(bucketTime) {
			return &w.buckets[i]
		}
	}

	// Prefer an empty slot, then the oldest bucket.
	target := -1
	for i := range w.buckets {
		if w.buckets[i].timestamp.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		target = 0
		for i := 1; i < len(w.buckets); i++ {
			if w.buckets[i].timestamp.Before(w.buckets[target].timestamp) {
				target = i
			}
		}
	}

	w.buckets[target] = outcomeBucket{timestamp: bucketTime}
	return &w.buckets[target]
}
