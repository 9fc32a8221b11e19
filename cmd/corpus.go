package cmd

import (
	"github.com/spf13/cobra"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect and build corpus snapshot files",
	Long: `Work with corpus snapshot files.

A snapshot is a self-contained copy of the reference corpus (embeddings,
labels, demographics) that serving hosts load without database access.
Snapshots are produced from a database source with 'corpus pull' and
inspected with 'corpus info' and 'corpus verify'.`,
}

func init() {
	rootCmd.AddCommand(corpusCmd)
}
