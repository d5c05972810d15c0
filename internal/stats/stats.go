// Package stats aggregates integer samples: word counts per section and
// indexing durations over a rolling window.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is a point-in-time aggregate of samples.
type Snapshot struct {
	Count int     `json:"count"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summarize aggregates values. The input is not modified.
func Summarize(values []int64) Snapshot {
	if len(values) == 0 {
		return Snapshot{}
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	return Snapshot{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Avg:   float64(sum) / float64(len(sorted)),
		P50:   Percentile(sorted, 50),
		P95:   Percentile(sorted, 95),
		P99:   Percentile(sorted, 99),
	}
}

// Percentile interpolates linearly between the closest ranks of a sorted
// slice.
func Percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}

type sample struct {
	timestamp time.Time
	value     int64
}

// Window keeps samples recorded within maxAge.
type Window struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewWindow(maxAge time.Duration) *Window {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds a sample. Negative values are clamped to zero.
func (w *Window) Record(v int64) {
	if v < 0 {
		v = 0
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.samples = append(w.samples, sample{timestamp: now, value: v})
}

func (w *Window) Snapshot() Snapshot {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	values := make([]int64, len(w.samples))
	for i, s := range w.samples {
		values[i] = s.value
	}
	return Summarize(values)
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	writeIdx := 0
	for _, s := range w.samples {
		if !s.timestamp.Before(cutoff) {
			w.samples[writeIdx] = s
			writeIdx++
		}
	}
	w.samples = w.samples[:writeIdx]
}
