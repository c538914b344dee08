package orchestrate

import "testing"

func TestClassifyURLDetectsDocumentation(t *testing.T) {
	if got := ClassifyURL("https://example.com/docs/getting-started"); got != CategoryDocumentation {
		t.Fatalf("got %s, want documentation", got)
	}
	if got := ClassifyURL("https://example.com/api/v1/reference"); got != CategoryDocumentation {
		t.Fatalf("got %s, want documentation", got)
	}
}

func TestClassifyURLDetectsArticle(t *testing.T) {
	if got := ClassifyURL("https://example.com/blog/2026/launch"); got != CategoryArticle {
		t.Fatalf("got %s, want article", got)
	}
}

func TestClassifyURLDefaultsToGeneral(t *testing.T) {
	if got := ClassifyURL("https://example.com/about"); got != CategoryGeneral {
		t.Fatalf("got %s, want general", got)
	}
}

func TestProfileForURLReturnsMatchingProfile(t *testing.T) {
	profile := ProfileForURL("https://example.com/docs/x")
	if profile.Category != CategoryDocumentation {
		t.Fatalf("got category %s", profile.Category)
	}
	if profile.WordThreshold != 20 {
		t.Fatalf("got threshold %d", profile.WordThreshold)
	}
}
