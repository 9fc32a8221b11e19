package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/derm-match/internal/corpus"
)

var corpusInfoCmd = &cobra.Command{
	Use:   "info [snapshot-file]",
	Short: "Print snapshot header and label histograms",
	Long: `Print the header of a corpus snapshot file together with histograms of
its condition labels and demographic buckets.

Examples:
  derm-match corpus info corpus.snap
  derm-match corpus info corpus.snap --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCorpusInfo,
}

func init() {
	corpusCmd.AddCommand(corpusInfoCmd)

	corpusInfoCmd.Flags().Bool("json", false, "Output as JSON")
}

// CorpusInfo is the JSON output of the corpus info command.
type CorpusInfo struct {
	Version      int            `json:"version"`
	ModelVersion string         `json:"model_version"`
	Dim          int            `json:"dim"`
	CreatedAt    time.Time      `json:"created_at"`
	Records      int            `json:"records"`
	Ages         map[string]int `json:"ages"`
	Ethnicities  map[string]int `json:"ethnicities"`
	Labels       map[string]int `json:"labels"`
}

func runCorpusInfo(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	snap, err := corpus.ReadSnapshot(args[0])
	if err != nil {
		return err
	}

	info := CorpusInfo{
		Version:      snap.Version,
		ModelVersion: snap.ModelVersion,
		Dim:          snap.Dim,
		CreatedAt:    snap.CreatedAt,
		Records:      len(snap.Records),
		Ages:         map[string]int{},
		Ethnicities:  map[string]int{},
		Labels:       map[string]int{},
	}
	for i := range snap.Records {
		r := &snap.Records[i]
		info.Ages[orUnknown(string(r.Age))]++
		info.Ethnicities[orUnknown(string(r.Ethnicity))]++
		if len(r.Labels) == 0 {
			info.Labels["unlabeled"]++
		}
		for _, label := range r.Labels {
			info.Labels[orUnknown(label)]++
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("Snapshot: %s\n", args[0])
	fmt.Printf("  Format version: %d\n", info.Version)
	fmt.Printf("  Model:          %s\n", info.ModelVersion)
	fmt.Printf("  Dimension:      %d\n", info.Dim)
	fmt.Printf("  Created:        %s\n", info.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Records:        %d\n", info.Records)

	printHistogram("Age buckets", info.Ages)
	printHistogram("Ethnicity buckets", info.Ethnicities)
	printHistogram("Condition labels", info.Labels)
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// printHistogram prints a count table sorted by count descending, ties by
// name, so the output is stable.
func printHistogram(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	fmt.Printf("\n%s:\n", title)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%d\n", name, counts[name])
	}
	w.Flush()
}
