package extract

// Entity is one entity observation extracted from a chunk, before
// cross-chunk merge.
type Entity struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Mentions    int     `json:"mentions"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// Relationship is one relationship observation extracted from a chunk,
// before cross-chunk merge.
type Relationship struct {
	FromEntity       string  `json:"from_entity"`
	ToEntity         string  `json:"to_entity"`
	RelationshipType string  `json:"relationship_type"`
	Description      string  `json:"description"`
	Confidence       float64 `json:"confidence"`
}

// Result is the merged extraction output for a whole document.
type Result struct {
	Entities      []Entity
	Relationships []Relationship
	UsedFallback  bool
}

// chunkExtraction is the raw per-chunk LLM response shape.
type chunkExtraction struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}
