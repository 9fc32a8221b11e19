package index

import (
	"time"

	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

// CaseRecord is one reference case held by the similarity index. Vector must
// have the dimension the index was created with.
type CaseRecord struct {
	ID        string                   `json:"record_id"`
	Vector    []float32                `json:"-"`
	Age       taxonomy.AgeBucket       `json:"age"`
	Ethnicity taxonomy.EthnicityBucket `json:"ethnicity"`
	Quality   float64                  `json:"quality"`
	Labels    []string                 `json:"labels,omitempty"`
	ImageRef  string                   `json:"image_ref,omitempty"`
}

// Result is a ranked match. Similarity is the raw cosine similarity of the
// query against the record; Score additionally carries the demographic boost
// and is what the ranking ordered by.
type Result struct {
	Record     CaseRecord `json:"record"`
	Similarity float64    `json:"similarity"`
	Score      float64    `json:"score"`
	Boosted    bool       `json:"boosted"`
}

// Stats describes the currently loaded snapshot.
type Stats struct {
	Records  int       `json:"records"`
	Dim      int       `json:"dim"`
	HNSW     bool      `json:"hnsw"`
	Swaps    uint64    `json:"swaps"`
	LastSwap time.Time `json:"last_swap"`
}
