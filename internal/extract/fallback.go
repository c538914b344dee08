package extract

import "regexp"

// fallbackConfidence marks every rule-based entity with a visibly lower
// confidence than an LLM extraction would carry.
const fallbackConfidence = 0.4

var languagePattern = regexp.MustCompile(`\b(Go|Python|JavaScript|TypeScript|Rust|Java|Ruby|PHP|Kotlin|Swift)\b`)
var frameworkPattern = regexp.MustCompile(`\b(React|Vue|Angular|Django|Flask|FastAPI|Express|Spring|Rails|Next\.js|Gin|Echo)\b`)
var infraPattern = regexp.MustCompile(`\b(Docker|Kubernetes|Terraform|AWS|GCP|Azure|Postgres|PostgreSQL|Redis|Kafka|Nginx)\b`)
var allCapsPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9_]{2,}\b`)

// fallbackExtract tags well-known languages, frameworks, infra names, and
// ALL_CAPS identifiers as Configuration entities when no LLM is
// configured. No relationships are produced by the rule-based path.
func fallbackExtract(chunk string) chunkExtraction {
	seen := map[string]bool{}
	var entities []Entity

	addAll := func(pattern *regexp.Regexp) {
		for _, match := range pattern.FindAllString(chunk, -1) {
			if seen[match] {
				continue
			}
			seen[match] = true
			entities = append(entities, Entity{
				Type:        "Configuration",
				Name:        match,
				Description: "detected by pattern match",
				Mentions:    1,
				Confidence:  fallbackConfidence,
			})
		}
	}

	addAll(languagePattern)
	addAll(frameworkPattern)
	addAll(infraPattern)
	addAll(allCapsPattern)

	return chunkExtraction{Entities: entities}
}
