package retrieve

import "github.com/ragcrawld/ragcrawld/internal/vectorstore"

// boostFactor and keywordOnlySimilarity implement the hybrid merge's
// "boost similarity by x1.2 capped at 1.0" rule for rows found by both
// search paths.
const (
	boostFactor           = 1.2
	keywordOnlySimilarity = 0.5
)

// resultKey identifies a row across the vector and keyword result sets.
// ID is the backend row identifier; it is stable for a given (url,
// chunk_number) pair regardless of which search path found it.
func resultKey(r vectorstore.SearchResult) string {
	if r.ID != "" {
		return r.ID
	}
	return r.URL
}

// mergeHybrid combines vector and keyword search results: rows present in
// both are promoted and boosted first, then remaining vector-only rows,
// then keyword-only rows padded at a neutral similarity. No id appears
// twice in the output.
//
// limit is the number of rows the caller actually needs (offset +
// match_count, not bare match_count): the merge must produce enough rows
// to support pagination past the first page, not just a single page
// starting at offset zero.
func mergeHybrid(vectorResults, keywordResults []vectorstore.SearchResult, limit int) []vectorstore.SearchResult {
	keywordByKey := make(map[string]vectorstore.SearchResult, len(keywordResults))
	for _, r := range keywordResults {
		keywordByKey[resultKey(r)] = r
	}

	consumed := make(map[string]bool, len(vectorResults))

	var both []vectorstore.SearchResult
	for _, r := range vectorResults {
		key := resultKey(r)
		if _, ok := keywordByKey[key]; ok {
			r.Similarity = r.Similarity * boostFactor
			if r.Similarity > 1.0 {
				r.Similarity = 1.0
			}
			both = append(both, r)
			consumed[key] = true
		}
	}

	var vectorOnly []vectorstore.SearchResult
	for _, r := range vectorResults {
		if !consumed[resultKey(r)] {
			vectorOnly = append(vectorOnly, r)
		}
	}

	var keywordOnly []vectorstore.SearchResult
	for _, r := range keywordResults {
		key := resultKey(r)
		if consumed[key] {
			continue
		}
		r.Similarity = keywordOnlySimilarity
		keywordOnly = append(keywordOnly, r)
	}

	merged := make([]vectorstore.SearchResult, 0, len(both)+len(vectorOnly)+len(keywordOnly))
	merged = append(merged, both...)
	merged = append(merged, vectorOnly...)
	merged = append(merged, keywordOnly...)

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
