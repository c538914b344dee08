package extract

const systemPrompt = `You extract a knowledge graph from a chunk of technical documentation.

Entity types (use exactly one of these six, case-sensitive):
- Concept: an idea, pattern, or abstraction.
- Technology: a tool, framework, library, language, or platform.
- Configuration: a setting, flag, parameter, or environment variable.
- Person: a named individual.
- Organization: a company, team, or project.
- Product: a named product or service.

Relationship labels (use exactly one of these, or RELATED_TO if none fit):
REQUIRES, DEPENDS_ON, USES, IMPLEMENTS, EXTENDS, PART_OF, CONFIGURES,
ENABLES, PROVIDES, ALTERNATIVE_TO, SIMILAR_TO, PREREQUISITE_FOR,
DOCUMENTED_IN, RELATED_TO.

Guidelines:
- Extract 5 to 20 entities per chunk.
- Use consistent casing for the same entity across the document.
- Avoid generic nouns such as "code" or "system" as entity names.
- Only emit relationships between entities you also extracted.

Respond with JSON only, matching this shape:
{"entities": [{"type": "...", "name": "...", "description": "...", "mentions": 1}],
 "relationships": [{"from_entity": "...", "to_entity": "...", "relationship_type": "...", "description": "...", "confidence": 0.8}]}
`

func userPrompt(chunk string) string {
	return "Extract entities and relationships from this documentation chunk:\n\n" + chunk
}
