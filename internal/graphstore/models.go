package graphstore

import "time"

// Entity is a typed node in the graph store, uniquely keyed by name within
// its label.
type Entity struct {
	Label       string
	Name        string
	Description string
	Mentions    int
	UpdatedAt   time.Time
}

// EntityInput is a single entity observation from extraction, before alias
// normalization and merge.
type EntityInput struct {
	Type        string
	Name        string
	Description string
	Mentions    int
}

// RelationshipInput is a single relationship observation from extraction, before
// label normalization and merge.
type RelationshipInput struct {
	FromEntity       string
	ToEntity         string
	RelationshipType string
	Description      string
	Confidence       float64
}

// Relationship is a normalized, stored edge between two entities.
type Relationship struct {
	FromEntity  string
	ToEntity    string
	Type        string
	Description string
	Confidence  float64
	UpdatedAt   time.Time
}

// RelatedEntity is a neighbor returned by EntityContext (up to maxHops
// away) or EnrichDocuments (1 hop).
type RelatedEntity struct {
	Entity       Entity
	Relationship Relationship
}

// EntityContextResult is the response shape for the entity_context read.
type EntityContextResult struct {
	Entity              Entity
	Related             []RelatedEntity
	MentioningDocuments []string
}

// DocumentEnrichment is one entry in EnrichDocuments' result: a top-N
// entity by mention count across the requested document set, with its
// 1-hop relationships.
type DocumentEnrichment struct {
	Entity        Entity
	MentionsCount int
	Related       []RelatedEntity
}

// EnrichResult bundles the entity list with a pre-formatted markdown block
// ready to splice into an LLM context.
type EnrichResult struct {
	Entities []DocumentEnrichment
	Markdown string
}
