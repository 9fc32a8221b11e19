// Package index holds the in-memory similarity index over the reference
// corpus. Queries run against an immutable snapshot that is swapped
// atomically, so searches never block behind a corpus reload.
package index

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

var (
	// ErrUnavailable means no usable corpus snapshot is loaded.
	ErrUnavailable = errors.New("similarity index unavailable")

	// ErrDimensionMismatch means a vector does not match the dimension the
	// index was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Config tunes an Index. Zero values select the defaults.
type Config struct {
	// HNSWThreshold is the corpus size at which Swap starts building an
	// approximate graph next to the snapshot.
	HNSWThreshold int

	// Boost is the score multiplier applied to records matching the
	// demographic hint of a query.
	Boost float64
}

// Index answers nearest neighbor queries over the current corpus snapshot.
type Index struct {
	dim int
	cfg Config

	mu       sync.Mutex // serializes Swap
	snapshot atomic.Pointer[snapshot]
	swaps    atomic.Uint64
}

type snapshot struct {
	records []CaseRecord
	graph   *hnsw.Graph[int]
	builtAt time.Time
}

// New creates an empty index for vectors of the given dimension.
func New(dim int, cfg Config) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if cfg.HNSWThreshold <= 0 {
		cfg.HNSWThreshold = DefaultHNSWThreshold
	}
	if cfg.Boost <= 0 {
		cfg.Boost = DemographicBoost
	}
	return &Index{dim: dim, cfg: cfg}, nil
}

// Dim returns the vector dimension the index accepts.
func (idx *Index) Dim() int {
	return idx.dim
}

// Swap validates records and atomically replaces the current snapshot. The
// index takes ownership of the slice. Queries running during the swap finish
// against the snapshot they started with; on validation failure the previous
// snapshot stays in place.
func (idx *Index) Swap(records []CaseRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		r := &records[i]
		if r.ID == "" {
			return fmt.Errorf("record %d has an empty id", i)
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("duplicate record id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		if len(r.Vector) != idx.dim {
			return fmt.Errorf("record %q: %w: got %d, want %d", r.ID, ErrDimensionMismatch, len(r.Vector), idx.dim)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	snap := &snapshot{records: records, builtAt: time.Now()}
	if len(records) >= idx.cfg.HNSWThreshold {
		snap.graph = buildGraph(records)
	}

	idx.snapshot.Store(snap)
	idx.swaps.Add(1)
	log.Printf("index: loaded %d records (hnsw: %v)", len(records), snap.graph != nil)
	return nil
}

// Query returns the k best matches for the vector, ordered by the ranking
// rules. The hint promotes demographically matching records but never
// filters anything out. Fewer than k results come back when the corpus is
// smaller than k.
func (idx *Index) Query(vector []float32, k int, hint taxonomy.Hint) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), idx.dim)
	}

	snap := idx.snapshot.Load()
	if snap == nil || len(snap.records) == 0 {
		return nil, ErrUnavailable
	}

	var candidates []scoredRecord
	if snap.graph != nil {
		positions := searchGraph(snap.graph, vector, k)
		candidates = make([]scoredRecord, 0, len(positions))
		for _, pos := range positions {
			r := &snap.records[pos]
			candidates = append(candidates, scoredRecord{record: r, similarity: CosineSimilarity(vector, r.Vector)})
		}
	} else {
		candidates = make([]scoredRecord, 0, len(snap.records))
		for i := range snap.records {
			r := &snap.records[i]
			candidates = append(candidates, scoredRecord{record: r, similarity: CosineSimilarity(vector, r.Vector)})
		}
	}

	return rank(candidates, hint, idx.cfg.Boost, k), nil
}

// Ready reports whether a snapshot with at least one record is loaded.
func (idx *Index) Ready() bool {
	snap := idx.snapshot.Load()
	return snap != nil && len(snap.records) > 0
}

// Stats describes the loaded snapshot.
func (idx *Index) Stats() Stats {
	stats := Stats{Dim: idx.dim, Swaps: idx.swaps.Load()}
	if snap := idx.snapshot.Load(); snap != nil {
		stats.Records = len(snap.records)
		stats.HNSW = snap.graph != nil
		stats.LastSwap = snap.builtAt
	}
	return stats
}
