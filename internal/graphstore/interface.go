package graphstore

import "context"

// Store is the graph store gateway contract. Every write is
// MERGE/upsert semantics, never destructive at the entity level; every
// operation is best-effort — failures are logged and reported as zero
// counts, never propagated as a failed enclosing request.
type Store interface {
	// EnsureSchema creates uniqueness constraints and indexes; safe to call
	// repeatedly at startup.
	EnsureSchema(ctx context.Context) error

	// StoreDocument merges the Document node, its Source node, and the
	// FROM_SOURCE edge between them.
	StoreDocument(ctx context.Context, documentID, sourceID, url, title string, metadata map[string]any) error

	// StoreEntities merges one entity per input under its alias-normalized
	// label, sets description only if unset, and increments the document's
	// MENTIONS edge by the supplied count.
	StoreEntities(ctx context.Context, documentID string, entities []EntityInput) (stored int, err error)

	// StoreRelationships normalizes each relationship's label and merges
	// the edge, refreshing description/confidence/updated_at.
	StoreRelationships(ctx context.Context, relationships []RelationshipInput) (stored int, err error)

	// EntityContext returns one entity, a bounded list of related entities
	// within maxHops (by name only; relationship details are not filled),
	// and the documents that mention it.
	EntityContext(ctx context.Context, name string, maxHops, maxRelated int) (EntityContextResult, error)

	// EnrichDocuments returns the top maxEntities entities (ranked by
	// mentions across documentIDs) with 1-hop relationships, plus a
	// pre-formatted markdown block.
	EnrichDocuments(ctx context.Context, documentIDs []string, maxEntities int) (EnrichResult, error)

	// Query runs an arbitrary Cypher statement and returns one map per
	// result record. Callers that expose this to untrusted input are
	// responsible for rejecting write clauses before calling it.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// Close releases driver resources.
	Close(ctx context.Context) error
}
