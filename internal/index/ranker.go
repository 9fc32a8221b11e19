package index

import (
	"sort"

	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

const (
	// DemographicBoost is the default multiplier for records whose metadata
	// matches the query hint. Matching records are promoted, non-matching
	// records are never removed.
	DemographicBoost = 1.1

	// ScoreEpsilon is the score difference below which two results count
	// as tied and fall through to the deterministic tie breakers.
	ScoreEpsilon = 1e-6
)

type scoredRecord struct {
	record     *CaseRecord
	similarity float64
}

// rank orders candidates by boosted similarity and returns the top k.
// Ties within ScoreEpsilon are broken by record quality (higher first) and
// then by record ID, so equal corpora rank identically no matter the
// candidate order.
func rank(candidates []scoredRecord, hint taxonomy.Hint, boost float64, k int) []Result {
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		score := c.similarity
		boosted := false
		if hint.Matches(c.record.Age, c.record.Ethnicity) {
			score *= boost
			boosted = true
		}
		results = append(results, Result{
			Record:     *c.record,
			Similarity: c.similarity,
			Score:      score,
			Boosted:    boosted,
		})
	}

	// An epsilon inside the score comparison is not transitive, so the
	// order would depend on the candidate permutation. Sort strictly
	// first, then re-break near-ties in a separate pass.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Record.Quality != results[j].Record.Quality {
			return results[i].Record.Quality > results[j].Record.Quality
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	breakNearTies(results)

	if k < len(results) {
		results = results[:k]
	}
	return results
}

// breakNearTies re-sorts every maximal run of adjacent results whose
// consecutive score gaps are within ScoreEpsilon by quality and then ID.
// Runs are found on the strictly sorted slice, so they cannot depend on
// the original candidate order.
func breakNearTies(results []Result) {
	for lo := 0; lo < len(results); {
		hi := lo + 1
		for hi < len(results) && results[hi-1].Score-results[hi].Score <= ScoreEpsilon {
			hi++
		}
		if hi-lo > 1 {
			run := results[lo:hi]
			sort.Slice(run, func(i, j int) bool {
				if run[i].Record.Quality != run[j].Record.Quality {
					return run[i].Record.Quality > run[j].Record.Quality
				}
				return run[i].Record.ID < run[j].Record.ID
			})
		}
		lo = hi
	}
}
