package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/derm-match/internal/config"
	"github.com/kozaktomas/derm-match/internal/corpus"
)

var corpusPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the corpus from its database source into a snapshot file",
	Long: `Read every record from the configured database corpus source and write
a self-contained snapshot file. Serving hosts load the snapshot directly and
need no database access.

CORPUS_SOURCE must be postgres or mariadb; pulling from a file source makes
no sense.

Examples:
  CORPUS_SOURCE=postgres derm-match corpus pull --out corpus.snap
  CORPUS_SOURCE=mariadb derm-match corpus pull --out corpus.snap`,
	RunE: runCorpusPull,
}

func init() {
	corpusCmd.AddCommand(corpusPullCmd)

	corpusPullCmd.Flags().String("out", "corpus.snap", "Snapshot file to write")
	corpusPullCmd.Flags().Duration("timeout", 10*time.Minute, "Deadline for the database read")
}

func runCorpusPull(cmd *cobra.Command, args []string) error {
	out := mustGetString(cmd, "out")
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	cfg := config.Load()
	if cfg.Corpus.Source == "" || cfg.Corpus.Source == "file" {
		return errors.New("corpus pull needs a database source; set CORPUS_SOURCE to postgres or mariadb")
	}

	source, closeFn, err := newCorpusSource(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("Reading corpus from %s...\n", source.Describe())
	records, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("corpus source %s holds no records", source.Describe())
	}

	dim := cfg.EmbeddingDim()
	bar := progressbar.NewOptions(len(records),
		progressbar.OptionSetDescription("Checking records"),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
	)
	for i := range records {
		if len(records[i].Vector) != dim {
			return fmt.Errorf("record %q: vector dimension %d, want %d; is EMBEDDING_MODEL right?",
				records[i].ID, len(records[i].Vector), dim)
		}
		bar.Add(1)
	}
	fmt.Println()

	snap := &corpus.Snapshot{
		Version:      corpus.SnapshotVersion,
		ModelVersion: cfg.Embedding.Model,
		Dim:          dim,
		CreatedAt:    time.Now().UTC(),
		Records:      records,
	}
	if err := corpus.WriteSnapshot(out, snap); err != nil {
		return err
	}

	fmt.Printf("Wrote %d records (dimension %d) to %s\n", len(records), dim, out)
	return nil
}
