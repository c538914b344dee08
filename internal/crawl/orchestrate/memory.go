package orchestrate

import (
	"runtime"
	"sync/atomic"
)

// MemoryMonitor samples heap memory (runtime MemStats.Alloc) and halves
// concurrency when it crosses a configured threshold, never below 1. It
// never recovers the lost concurrency within the same run. The
// orchestrator samples it once per crawl request, before the strategy
// runs, and only when the request sets MaxConcurrency; the batches inside
// a strategy (each recursive depth, a sitemap's URL batch) are not
// sampled separately. thresholdBytes is an atomic so a config reload can
// adjust it while a crawl is in flight without a data race.
type MemoryMonitor struct {
	thresholdBytes atomic.Uint64

	peak      uint64
	sampleSum uint64
	samples   int
	throttled int
}

// NewMemoryMonitor returns a monitor that throttles when sampled heap
// memory crosses thresholdBytes. The process's resident set size is not
// read.
func NewMemoryMonitor(thresholdBytes uint64) *MemoryMonitor {
	m := &MemoryMonitor{}
	m.thresholdBytes.Store(thresholdBytes)
	return m
}

// SetThreshold updates the throttling threshold in place, e.g. on a
// config reload.
func (m *MemoryMonitor) SetThreshold(thresholdBytes uint64) {
	m.thresholdBytes.Store(thresholdBytes)
}

// readAlloc is overridable in tests so threshold crossings can be
// simulated deterministically rather than depending on the test process's
// actual heap size.
var readAlloc = func() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// NextConcurrency samples current memory and returns the concurrency to
// use for the next batch: unchanged if under threshold, halved (floor 1)
// if over.
func (m *MemoryMonitor) NextConcurrency(current int) int {
	sample := readAlloc()
	m.sampleSum += sample
	m.samples++
	if sample > m.peak {
		m.peak = sample
	}

	threshold := m.thresholdBytes.Load()
	if threshold == 0 || sample <= threshold {
		return current
	}

	m.throttled++
	next := current / 2
	if next < 1 {
		next = 1
	}
	return next
}

// Peak returns the highest sampled heap memory.
func (m *MemoryMonitor) Peak() uint64 { return m.peak }

// Mean returns the average sampled heap memory across all samples.
func (m *MemoryMonitor) Mean() uint64 {
	if m.samples == 0 {
		return 0
	}
	return m.sampleSum / uint64(m.samples)
}

// ThrottleCount returns how many times a batch was throttled.
func (m *MemoryMonitor) ThrottleCount() int { return m.throttled }
