package orchestrate

import "testing"

func withFakeAlloc(t *testing.T, values []uint64) {
	t.Helper()
	i := 0
	original := readAlloc
	readAlloc = func() uint64 {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
	t.Cleanup(func() { readAlloc = original })
}

func TestMemoryMonitorHalvesConcurrencyAboveThreshold(t *testing.T) {
	withFakeAlloc(t, []uint64{2000})
	m := NewMemoryMonitor(1000)

	next := m.NextConcurrency(8)
	if next != 4 {
		t.Fatalf("expected 4, got %d", next)
	}
	if m.ThrottleCount() != 1 {
		t.Fatalf("expected throttle count 1, got %d", m.ThrottleCount())
	}
}

func TestMemoryMonitorNeverGoesBelowOne(t *testing.T) {
	withFakeAlloc(t, []uint64{2000})
	m := NewMemoryMonitor(1000)

	next := m.NextConcurrency(1)
	if next != 1 {
		t.Fatalf("expected 1, got %d", next)
	}
}

func TestMemoryMonitorLeavesConcurrencyUnchangedUnderThreshold(t *testing.T) {
	withFakeAlloc(t, []uint64{500})
	m := NewMemoryMonitor(1000)

	next := m.NextConcurrency(8)
	if next != 8 {
		t.Fatalf("expected 8, got %d", next)
	}
	if m.ThrottleCount() != 0 {
		t.Fatalf("expected no throttling, got %d", m.ThrottleCount())
	}
}

func TestMemoryMonitorTracksPeakAndMean(t *testing.T) {
	withFakeAlloc(t, []uint64{100, 300, 200})
	m := NewMemoryMonitor(0)

	m.NextConcurrency(4)
	m.NextConcurrency(4)
	m.NextConcurrency(4)

	if m.Peak() != 300 {
		t.Fatalf("expected peak 300, got %d", m.Peak())
	}
	if m.Mean() != 200 {
		t.Fatalf("expected mean 200, got %d", m.Mean())
	}
}

func TestMemoryMonitorSetThresholdTakesEffectOnNextSample(t *testing.T) {
	withFakeAlloc(t, []uint64{2000, 2000})
	m := NewMemoryMonitor(1000)

	if next := m.NextConcurrency(8); next != 4 {
		t.Fatalf("expected throttling at threshold 1000, got %d", next)
	}

	m.SetThreshold(5000)
	if next := m.NextConcurrency(8); next != 8 {
		t.Fatalf("expected no throttling after raising threshold, got %d", next)
	}
}

func TestMemoryMonitorZeroThresholdNeverThrottles(t *testing.T) {
	withFakeAlloc(t, []uint64{9999999})
	m := NewMemoryMonitor(0)

	next := m.NextConcurrency(6)
	if next != 6 {
		t.Fatalf("expected 6 (no throttling with zero threshold), got %d", next)
	}
}
