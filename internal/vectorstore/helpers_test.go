package vectorstore

import "testing"

func TestPadOrTrimPadsShortVectors(t *testing.T) {
	out := padOrTrim([]float32{1, 2}, 5)
	if len(out) != 5 {
		t.Fatalf("expected length 5, got %d", len(out))
	}
	if out[0] != 1 || out[1] != 2 || out[4] != 0 {
		t.Fatalf("unexpected padding: %v", out)
	}
}

func TestPadOrTrimTrimsLongVectors(t *testing.T) {
	out := padOrTrim([]float32{1, 2, 3, 4}, 2)
	if len(out) != 2 {
		t.Fatalf("expected length 2, got %d", len(out))
	}
}

func TestPadOrTrimLeavesExactLengthAlone(t *testing.T) {
	in := []float32{1, 2, 3}
	out := padOrTrim(in, 3)
	if len(out) != 3 || out[0] != 1 {
		t.Fatalf("unexpected result: %v", out)
	}
}

func TestSourceIDFromMetadatasReturnsFirstNonEmpty(t *testing.T) {
	got := sourceIDFromMetadatas([]map[string]any{
		{"other": "x"},
		{"source_id": "example.com"},
		{"source_id": "other.com"},
	})
	if got != "example.com" {
		t.Fatalf("expected example.com, got %q", got)
	}
}

func TestSourceIDFromMetadatasReturnsEmptyWhenMissing(t *testing.T) {
	got := sourceIDFromMetadatas([]map[string]any{{"other": "x"}})
	if got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestContainsFoldIsCaseInsensitive(t *testing.T) {
	if !containsFold("Hello World", "world") {
		t.Fatal("expected case-insensitive match")
	}
	if containsFold("Hello World", "xyz") {
		t.Fatal("expected no match")
	}
}
