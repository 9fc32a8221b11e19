package cmd

import (
	"fmt"
	"math"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/derm-match/internal/corpus"
	"github.com/kozaktomas/derm-match/internal/index"
	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

var corpusVerifyCmd = &cobra.Command{
	Use:   "verify [snapshot-file]",
	Short: "Check snapshot integrity",
	Long: `Walk every record of a corpus snapshot and check its integrity:
vector dimensions match the header, all components are finite, record ids
are unique and quality scores stay in [0, 1]. Vectors that are not
L2-normalized are reported but do not fail the check.

With --recall the command additionally builds an approximate search graph
over the snapshot and measures its recall against exact brute-force search
on sampled queries.

Examples:
  derm-match corpus verify corpus.snap
  derm-match corpus verify corpus.snap --recall --samples 200 --k 10`,
	Args: cobra.ExactArgs(1),
	RunE: runCorpusVerify,
}

func init() {
	corpusCmd.AddCommand(corpusVerifyCmd)

	corpusVerifyCmd.Flags().Bool("recall", false, "Measure approximate search recall against brute force")
	corpusVerifyCmd.Flags().Int("samples", 100, "Number of sampled queries for the recall measurement")
	corpusVerifyCmd.Flags().Int("k", 10, "Result count per sampled query")
}

func runCorpusVerify(cmd *cobra.Command, args []string) error {
	measureRecall := mustGetBool(cmd, "recall")
	samples := mustGetInt(cmd, "samples")
	k := mustGetInt(cmd, "k")

	snap, err := corpus.ReadSnapshot(args[0])
	if err != nil {
		return err
	}
	if len(snap.Records) == 0 {
		return fmt.Errorf("snapshot %s holds no records", args[0])
	}

	bar := progressbar.NewOptions(len(snap.Records),
		progressbar.OptionSetDescription("Verifying records"),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
	)

	seen := make(map[string]struct{}, len(snap.Records))
	unnormalized := 0
	for i := range snap.Records {
		r := &snap.Records[i]
		if r.ID == "" {
			return fmt.Errorf("record %d has an empty id", i)
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("duplicate record id %q", r.ID)
		}
		seen[r.ID] = struct{}{}

		if len(r.Vector) != snap.Dim {
			return fmt.Errorf("record %q: vector dimension %d, header says %d", r.ID, len(r.Vector), snap.Dim)
		}
		var norm float64
		for _, v := range r.Vector {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("record %q: vector contains a non-finite component", r.ID)
			}
			norm += f * f
		}
		if math.Abs(math.Sqrt(norm)-1) > 0.01 {
			unnormalized++
		}
		if r.Quality < 0 || r.Quality > 1 || math.IsNaN(r.Quality) {
			return fmt.Errorf("record %q: quality %v outside [0, 1]", r.ID, r.Quality)
		}
		bar.Add(1)
	}
	fmt.Println()
	fmt.Printf("OK: %d records, dimension %d\n", len(snap.Records), snap.Dim)
	if unnormalized > 0 {
		fmt.Printf("Warning: %d vectors are not L2-normalized; cosine scoring still works but the corpus builder should normalize\n", unnormalized)
	}

	if !measureRecall {
		return nil
	}
	return runRecallBenchmark(snap, samples, k)
}

// runRecallBenchmark compares approximate graph search to exact brute force
// on queries sampled from the snapshot itself.
func runRecallBenchmark(snap *corpus.Snapshot, samples, k int) error {
	if samples < 1 {
		return fmt.Errorf("samples must be at least 1, got %d", samples)
	}
	if samples > len(snap.Records) {
		samples = len(snap.Records)
	}
	if k < 1 {
		return fmt.Errorf("k must be at least 1, got %d", k)
	}

	records := corpus.Sanitize(snap.Records)

	// Two indexes over the same records: one forced onto the graph, one
	// that never builds it. Snapshots are read-only so sharing is safe.
	exact, err := index.New(snap.Dim, index.Config{HNSWThreshold: len(records) + 1})
	if err != nil {
		return err
	}
	approx, err := index.New(snap.Dim, index.Config{HNSWThreshold: 1})
	if err != nil {
		return err
	}

	fmt.Println("Building approximate search graph...")
	if err := exact.Swap(records); err != nil {
		return err
	}
	if err := approx.Swap(records); err != nil {
		return err
	}

	bar := progressbar.NewOptions(samples,
		progressbar.OptionSetDescription(fmt.Sprintf("Sampling %d queries (k=%d)", samples, k)),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
	)

	recalls := make([]float64, samples)
	step := len(records) / samples

	var g errgroup.Group
	g.SetLimit(8)
	for i := 0; i < samples; i++ {
		g.Go(func() error {
			defer bar.Add(1)
			query := records[i*step].Vector

			want, err := exact.Query(query, k, taxonomy.Hint{})
			if err != nil {
				return err
			}
			got, err := approx.Query(query, k, taxonomy.Hint{})
			if err != nil {
				return err
			}

			wantIDs := make(map[string]struct{}, len(want))
			for _, res := range want {
				wantIDs[res.Record.ID] = struct{}{}
			}
			hits := 0
			for _, res := range got {
				if _, ok := wantIDs[res.Record.ID]; ok {
					hits++
				}
			}
			recalls[i] = float64(hits) / float64(len(want))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var sum, worst float64 = 0, 1
	for _, r := range recalls {
		sum += r
		if r < worst {
			worst = r
		}
	}
	fmt.Println()
	fmt.Printf("Recall@%d: mean %.4f, worst %.4f over %d queries\n", k, sum/float64(samples), worst, samples)
	return nil
}
