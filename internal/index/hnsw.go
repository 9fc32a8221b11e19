package index

import "github.com/coder/hnsw"

const (
	// DefaultHNSWThreshold is the corpus size at which queries switch from
	// exact brute force scoring to the approximate HNSW graph.
	DefaultHNSWThreshold = 10_000

	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16

	// hnswOversample widens graph searches so the demographic boost can
	// reorder candidates without dropping matches that sit just outside
	// the raw top k.
	hnswOversample = 3
)

// buildGraph indexes records into an HNSW graph keyed by record position.
func buildGraph(records []CaseRecord) *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	for i := range records {
		g.Add(hnsw.MakeNode(i, records[i].Vector))
	}
	return g
}

// searchGraph returns candidate positions for the query, oversampled beyond
// k so the exact re-scoring pass has room to reorder.
func searchGraph(g *hnsw.Graph[int], vector []float32, k int) []int {
	neighbors := g.Search(vector, k*hnswOversample)

	positions := make([]int, 0, len(neighbors))
	for _, node := range neighbors {
		positions = append(positions, node.Key)
	}
	return positions
}
