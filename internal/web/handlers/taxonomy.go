package handlers

import (
	"net/http"

	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

// TaxonomyResponse lists the demographic buckets accepted by the analyze
// endpoint and attached to corpus records.
type TaxonomyResponse struct {
	Ages        []taxonomy.AgeBucket       `json:"ages"`
	Ethnicities []taxonomy.EthnicityBucket `json:"ethnicities"`
}

// Taxonomy handles the taxonomy listing endpoint.
func Taxonomy(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, TaxonomyResponse{
		Ages:        taxonomy.AgeBuckets(),
		Ethnicities: taxonomy.EthnicityBuckets(),
	})
}
