package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/derm-match/internal/analyzer"
	"github.com/kozaktomas/derm-match/internal/config"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image-file]",
	Short: "Analyze a single image and print the best corpus matches",
	Long: `Run the full matching pipeline on a local image file.

The image passes the quality gate and face localization, gets embedded and
is matched against the configured corpus. Results print as a table by
default.

Examples:
  # Analyze a photo
  derm-match analyze selfie.jpg

  # Ask for more matches with a demographic hint
  derm-match analyze selfie.jpg --k 10 --age adult --ethnicity south-asian

  # Output as JSON
  derm-match analyze selfie.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Int("k", 0, "Number of matches to return (default 5, max 50)")
	analyzeCmd.Flags().String("age", "", "Age hint (e.g. child, adult, senior)")
	analyzeCmd.Flags().String("ethnicity", "", "Ethnicity hint")
	analyzeCmd.Flags().Bool("json", false, "Output as JSON")
	analyzeCmd.Flags().Duration("timeout", 60*time.Second, "Overall deadline for the analysis")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	imageData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	if _, err := p.loader.Reload(ctx); err != nil {
		return err
	}

	report, err := p.analyzer.Analyze(ctx, analyzer.Request{
		Image:     imageData,
		Age:       mustGetString(cmd, "age"),
		Ethnicity: mustGetString(cmd, "ethnicity"),
		K:         mustGetInt(cmd, "k"),
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(report)
	return nil
}

func printReport(report *analyzer.Report) {
	fmt.Printf("Status: %s", report.Status)
	if report.Reason != "" {
		fmt.Printf(" (%s)", report.Reason)
	}
	fmt.Println()

	if report.Detector != "" {
		fmt.Printf("Detector: %s %s (confidence %.2f, cached %v)\n",
			report.Detector, report.DetectorVersion, report.Confidence, report.Cached)
	}
	fmt.Printf("Elapsed: %dms\n", report.ElapsedMS)

	if report.Status != analyzer.StatusOK {
		return
	}
	if len(report.Results) == 0 {
		fmt.Println("No similar cases found")
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tRECORD\tSCORE\tSIMILARITY\tBOOST\tAGE\tETHNICITY\tLABELS")
	for i, res := range report.Results {
		boost := ""
		if res.Boosted {
			boost = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%s\t%s\t%s\t%s\n",
			i+1, res.Record.ID, res.Score, res.Similarity, boost,
			res.Record.Age, res.Record.Ethnicity, strings.Join(res.Record.Labels, ","))
	}
	w.Flush()
}
