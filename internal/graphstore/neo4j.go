package graphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Config configures the Neo4j-backed Store.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// queryRunner abstracts a single Cypher round-trip so Neo4jStore's write
// and read methods can be exercised against a fake in tests without a live
// database. Each returned row is a plain key->value map, one per record.
type queryRunner interface {
	run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Neo4jStore is the primary graph store backend.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	runner queryRunner
	logger *zap.Logger
}

// New connects to Neo4j and returns a Store. Schema is not created here;
// call EnsureSchema once at startup.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Neo4jStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("graphstore: uri required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("graphstore: verify connectivity: %w", err)
	}

	store := &Neo4jStore{driver: driver, logger: logger}
	store.runner = &driverRunner{driver: driver, database: cfg.Database}
	return store, nil
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *driverRunner) run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if r.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(r.database))
	}
	result, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureSchema creates the constraints and indexes the graph layer requires.
// Each statement is idempotent (IF NOT EXISTS); failures are logged rather
// than fatal, since a reused database may already carry equivalent
// constraints created out of band.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT source_id_unique IF NOT EXISTS FOR (s:Source) REQUIRE s.id IS UNIQUE`,
		`CREATE INDEX document_source_id_idx IF NOT EXISTS FOR (d:Document) ON (d.source_id)`,
		`CREATE INDEX document_url_idx IF NOT EXISTS FOR (d:Document) ON (d.url)`,
	}
	for _, label := range EntityLabels {
		statements = append(statements, fmt.Sprintf(
			`CREATE CONSTRAINT %s_name_unique IF NOT EXISTS FOR (e:%s) REQUIRE e.name IS UNIQUE`,
			strings.ToLower(label), label,
		))
	}

	for _, stmt := range statements {
		if _, err := s.runner.run(ctx, stmt, nil); err != nil {
			s.logger.Warn("graph schema statement failed", zap.String("statement", stmt), zap.Error(err))
		}
	}
	return nil
}

// StoreDocument merges the Document and Source nodes and the FROM_SOURCE
// edge between them.
func (s *Neo4jStore) StoreDocument(ctx context.Context, documentID, sourceID, url, title string, metadata map[string]any) error {
	_, err := s.runner.run(ctx, `
MERGE (src:Source {id: $source_id})
ON CREATE SET src.created_at = datetime()
MERGE (doc:Document {id: $document_id})
SET doc.source_id = $source_id, doc.url = $url, doc.title = $title,
    doc.metadata = $metadata, doc.updated_at = datetime()
MERGE (doc)-[:FROM_SOURCE]->(src)
`, map[string]any{
		"document_id": documentID,
		"source_id":   sourceID,
		"url":         url,
		"title":       title,
		"metadata":    metadata,
	})
	if err != nil {
		s.logger.Warn("store_document failed", zap.String("document_id", documentID), zap.Error(err))
	}
	return err
}

// StoreEntities merges one entity per input under its alias-normalized
// label, leaving an existing description untouched, and increments the
// MENTIONS edge's count by the supplied mention count. Best-effort: a
// per-entity failure is logged and skipped, never aborting the batch.
func (s *Neo4jStore) StoreEntities(ctx context.Context, documentID string, entities []EntityInput) (int, error) {
	stored := 0
	for _, e := range entities {
		label := normalizeEntityLabel(e.Type)
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		mentions := e.Mentions
		if mentions <= 0 {
			mentions = 1
		}

		cypher := fmt.Sprintf(`
MERGE (e:%s {name: $name})
ON CREATE SET e.description = $description, e.type = $label, e.updated_at = datetime()
ON MATCH SET e.description = CASE WHEN e.description IS NULL OR e.description = '' THEN $description ELSE e.description END,
             e.updated_at = datetime()
WITH e
MATCH (doc:Document {id: $document_id})
MERGE (doc)-[m:MENTIONS]->(e)
ON CREATE SET m.count = $mentions
ON MATCH SET m.count = m.count + $mentions
`, label)

		if _, err := s.runner.run(ctx, cypher, map[string]any{
			"name":        name,
			"description": e.Description,
			"label":       label,
			"document_id": documentID,
			"mentions":    mentions,
		}); err != nil {
			s.logger.Warn("store_entities: entity failed", zap.String("name", name), zap.Error(err))
			continue
		}
		stored++
	}
	return stored, nil
}

// StoreRelationships normalizes each relationship's label, merges the
// edge, and refreshes description/confidence/updated_at. Best-effort.
func (s *Neo4jStore) StoreRelationships(ctx context.Context, relationships []RelationshipInput) (int, error) {
	stored := 0
	for _, r := range relationships {
		from := strings.TrimSpace(r.FromEntity)
		to := strings.TrimSpace(r.ToEntity)
		if from == "" || to == "" {
			continue
		}
		relType := normalizeRelationshipLabel(r.RelationshipType)

		cypher := fmt.Sprintf(`
MATCH (a {name: $from})
MATCH (b {name: $to})
MERGE (a)-[rel:%s]->(b)
SET rel.description = $description, rel.confidence = $confidence, rel.updated_at = datetime()
`, relType)

		if _, err := s.runner.run(ctx, cypher, map[string]any{
			"from":        from,
			"to":          to,
			"description": r.Description,
			"confidence":  r.Confidence,
		}); err != nil {
			s.logger.Warn("store_relationships: relationship failed",
				zap.String("from", from), zap.String("to", to), zap.Error(err))
			continue
		}
		stored++
	}
	return stored, nil
}

// EntityContext returns one entity, the names of up to maxRelated entities
// within maxHops of it, and its mentioning documents. Each RelatedEntity
// carries only the entity name; its Relationship is left empty.
func (s *Neo4jStore) EntityContext(ctx context.Context, name string, maxHops, maxRelated int) (EntityContextResult, error) {
	if maxHops <= 0 {
		maxHops = 1
	}
	if maxRelated <= 0 {
		maxRelated = 10
	}

	rows, err := s.runner.run(ctx, fmt.Sprintf(`
MATCH (e {name: $name})
OPTIONAL MATCH (e)-[rel*1..%d]-(related)
WHERE related.name IS NOT NULL AND related.name <> $name
OPTIONAL MATCH (doc:Document)-[:MENTIONS]->(e)
RETURN e.name AS name, e.description AS description, labels(e) AS labels,
       collect(DISTINCT related.name)[0..$max_related] AS related_names,
       collect(DISTINCT doc.id) AS document_ids
`, maxHops), map[string]any{"name": name, "max_related": maxRelated})
	if err != nil {
		s.logger.Warn("entity_context failed", zap.String("name", name), zap.Error(err))
		return EntityContextResult{}, nil
	}
	if len(rows) == 0 {
		return EntityContextResult{}, nil
	}

	row := rows[0]
	result := EntityContextResult{
		Entity: Entity{
			Name:        stringField(row, "name"),
			Description: stringField(row, "description"),
			Label:       firstEntityLabel(row["labels"]),
		},
		MentioningDocuments: stringSliceField(row, "document_ids"),
	}
	for _, relatedName := range stringSliceField(row, "related_names") {
		if relatedName == "" {
			continue
		}
		result.Related = append(result.Related, RelatedEntity{Entity: Entity{Name: relatedName}})
	}
	return result, nil
}

// EnrichDocuments returns the top maxEntities entities by mention count
// across documentIDs, each with 1-hop relationships, plus a pre-formatted
// markdown enrichment block.
func (s *Neo4jStore) EnrichDocuments(ctx context.Context, documentIDs []string, maxEntities int) (EnrichResult, error) {
	if len(documentIDs) == 0 {
		return EnrichResult{}, nil
	}
	if maxEntities <= 0 {
		maxEntities = 10
	}

	rows, err := s.runner.run(ctx, `
MATCH (doc:Document)-[m:MENTIONS]->(e)
WHERE doc.id IN $document_ids
WITH e, sum(m.count) AS mentions_count
ORDER BY mentions_count DESC
LIMIT $max_entities
OPTIONAL MATCH (e)-[rel]-(related)
WHERE related.name IS NOT NULL
RETURN e.name AS name, e.description AS description, labels(e) AS labels,
       mentions_count,
       collect(DISTINCT {name: related.name, type: type(rel)})[0..5] AS related
`, map[string]any{"document_ids": documentIDs, "max_entities": maxEntities})
	if err != nil {
		s.logger.Warn("enrich_documents failed", zap.Error(err))
		return EnrichResult{}, nil
	}

	var entities []DocumentEnrichment
	for _, row := range rows {
		enrichment := DocumentEnrichment{
			Entity: Entity{
				Name:        stringField(row, "name"),
				Description: stringField(row, "description"),
				Label:       firstEntityLabel(row["labels"]),
			},
			MentionsCount: intField(row, "mentions_count"),
		}
		if related, ok := row["related"].([]any); ok {
			for _, r := range related {
				if m, ok := r.(map[string]any); ok {
					relatedName, _ := m["name"].(string)
					relType, _ := m["type"].(string)
					if relatedName == "" {
						continue
					}
					enrichment.Related = append(enrichment.Related, RelatedEntity{
						Entity:       Entity{Name: relatedName},
						Relationship: Relationship{Type: relType},
					})
				}
			}
		}
		entities = append(entities, enrichment)
	}

	return EnrichResult{Entities: entities, Markdown: formatEnrichmentMarkdown(entities)}, nil
}

// Query runs an arbitrary Cypher statement through the same runner every
// other method uses. It applies no write/read classification of its own;
// callers exposing it to untrusted input must reject write clauses first.
func (s *Neo4jStore) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	rows, err := s.runner.run(ctx, cypher, params)
	if err != nil {
		s.logger.Warn("query failed", zap.Error(err))
		return nil, err
	}
	return rows, nil
}

func formatEnrichmentMarkdown(entities []DocumentEnrichment) string {
	if len(entities) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Related concepts\n\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "- **%s** (%s, mentioned %d times)", e.Entity.Name, e.Entity.Label, e.MentionsCount)
		if e.Entity.Description != "" {
			fmt.Fprintf(&b, ": %s", e.Entity.Description)
		}
		b.WriteString("\n")
		for _, rel := range e.Related {
			fmt.Fprintf(&b, "  - %s %s\n", strings.ToLower(strings.ReplaceAll(rel.Relationship.Type, "_", " ")), rel.Entity.Name)
		}
	}
	return b.String()
}

func stringField(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func intField(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func stringSliceField(row map[string]any, key string) []string {
	v, ok := row[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstEntityLabel(v any) string {
	labels, ok := v.([]any)
	if !ok {
		return ""
	}
	for _, l := range labels {
		if s, ok := l.(string); ok {
			for _, known := range EntityLabels {
				if s == known {
					return s
				}
			}
		}
	}
	return ""
}
