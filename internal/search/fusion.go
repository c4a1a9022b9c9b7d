package search

import (
	"slices"
	"strings"
)

// Default fusion weights. They do not need to sum to 1; the defaults do.
const (
	DefaultVectorWeight = 0.7
	DefaultTextWeight   = 0.3
)

// rrfK is the standard RRF damping constant. It keeps the top rank from
// dominating the fused score disproportionately.
const rrfK = 60

// dedupKeyLen is the number of leading bytes of chunk text used as the merge
// identity across the two result lists. Two chunks sharing a 100-byte prefix
// collide and are treated as the same item, an accepted approximation in the
// absence of a stable chunk id carried through retrieval.
const dedupKeyLen = 100

// dedupKey returns the content-based identity used to merge results.
func dedupKey(text string) string {
	if len(text) > dedupKeyLen {
		return text[:dedupKeyLen]
	}
	return text
}

// fuseRRF merges two ranked result lists with Reciprocal Rank Fusion.
//
// Each item contributes weight/(k+rank) per list it appears in, with 1-based
// ranks. Items appearing in both lists have their contributions summed. The
// fused list is sorted by summed score descending and truncated to limit;
// Score on the returned results is the RRF sum, not the original similarity
// or relevance score.
func fuseRRF(vectorResults, textResults []Result, limit int, vectorWeight, textWeight float64) []Result {
	type fused struct {
		result Result
		score  float64
	}

	scores := make(map[string]*fused, len(vectorResults)+len(textResults))

	accumulate := func(results []Result, weight float64) {
		for i, r := range results {
			rank := i + 1
			contribution := weight / float64(rrfK+rank)
			key := dedupKey(r.Text)
			if f, ok := scores[key]; ok {
				f.score += contribution
			} else {
				scores[key] = &fused{result: r, score: contribution}
			}
		}
	}

	accumulate(vectorResults, vectorWeight)
	accumulate(textResults, textWeight)

	merged := make([]Result, 0, len(scores))
	for _, f := range scores {
		r := f.result
		r.Score = f.score
		merged = append(merged, r)
	}

	// Tie-break on text so the output order is reproducible for fixed inputs.
	slices.SortFunc(merged, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.Text, b.Text)
		}
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
