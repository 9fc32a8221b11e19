// Package corpus loads reference case records from their storage backends
// and prepares them for the similarity index.
package corpus

import (
	"context"
	"fmt"
	"math"

	"github.com/kozaktomas/derm-match/internal/index"
	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

// Source yields the full set of reference cases from one storage backend.
type Source interface {
	// Load reads and sanitizes every record, ready to hand to the index.
	Load(ctx context.Context) ([]index.CaseRecord, error)

	// Describe names the backend for logs and the stats endpoint.
	Describe() string
}

// Sanitize normalizes raw corpus rows in place. Demographic labels are
// mapped through the taxonomy, so unrecognized values become unknown rather
// than an error, and quality scores are clamped to [0, 1].
func Sanitize(records []index.CaseRecord) []index.CaseRecord {
	for i := range records {
		r := &records[i]
		r.Age = taxonomy.ParseAge(string(r.Age))
		r.Ethnicity = taxonomy.ParseEthnicity(string(r.Ethnicity))
		if math.IsNaN(r.Quality) || r.Quality < 0 {
			r.Quality = 0
		}
		if r.Quality > 1 {
			r.Quality = 1
		}
	}
	return records
}

// CheckDim verifies every record carries a vector of the wanted dimension.
func CheckDim(records []index.CaseRecord, dim int) error {
	for i := range records {
		if len(records[i].Vector) != dim {
			return fmt.Errorf("record %q: vector dimension %d, want %d",
				records[i].ID, len(records[i].Vector), dim)
		}
	}
	return nil
}
