package graphstore

import "testing"

func TestNormalizeEntityLabelMapsKnownAliases(t *testing.T) {
	cases := map[string]string{
		"Tool":          "Technology",
		"framework":     "Technology",
		"LIBRARY":       "Technology",
		"configuration": "Configuration",
		"person":        "Person",
		"org":           "Organization",
		"product":       "Product",
		"something-new": "Concept",
		"":              "Concept",
	}
	for in, want := range cases {
		if got := normalizeEntityLabel(in); got != want {
			t.Errorf("normalizeEntityLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeRelationshipLabelUppercasesAndUnderscores(t *testing.T) {
	if got := normalizeRelationshipLabel("depends on"); got != "DEPENDS_ON" {
		t.Errorf("got %q, want DEPENDS_ON", got)
	}
	if got := normalizeRelationshipLabel("similar-to"); got != "SIMILAR_TO" {
		t.Errorf("got %q, want SIMILAR_TO", got)
	}
}

func TestNormalizeRelationshipLabelCollapsesUnknown(t *testing.T) {
	if got := normalizeRelationshipLabel("made up label"); got != defaultRelationshipLabel {
		t.Errorf("got %q, want %q", got, defaultRelationshipLabel)
	}
}

func TestEntityLabelsHasSixLabels(t *testing.T) {
	if len(EntityLabels) != 6 {
		t.Fatalf("expected 6 entity labels, got %d", len(EntityLabels))
	}
}
