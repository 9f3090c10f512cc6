package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimcheck/internal/report"
	"github.com/ppiankov/claimcheck/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	writeMD      bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run many claim checks from a YAML or JSON file in parallel",
	Long: `Batch runs independent claim checks concurrently:
- Read requests from a YAML or JSON file (a list of {policy, condition, treatment})
- Run them with a bounded worker pool, optionally throttled per policy
- Write one JSON result per request and print a summary

Example file:
  requests:
    - policy: Star Health Comprehensive
      condition: cataract
      treatment: surgery
    - policy: Care Supreme
      condition: diabetes

Example:
  claimcheck batch claims.yaml
  claimcheck batch claims.yaml --concurrency 8 --output-dir ./results --md`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent checks (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./claimcheck-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for the batch")
	batchCmd.Flags().Float64("policy-rps", 0, "max checks per second against one policy (0 = unlimited)")
	batchCmd.Flags().BoolVar(&writeMD, "md", false, "also write a Markdown report per request")

	_ = viper.BindPFlag("concurrency.policy_rate", batchCmd.Flags().Lookup("policy-rps"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	reqs, err := worker.ReadRequestsFromFile(file)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	cfg, rt, shutdown, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d requests)\n", file, len(reqs))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(rt, workers, cfg.Concurrency.PolicyRate, cfg.Concurrency.PolicyBurst)
	processor.SetPolicyRates(cfg.Concurrency.PolicyRates)
	results := processor.ProcessRequests(ctx, reqs)

	var succeeded, failed int
	for i, res := range results {
		label := fmt.Sprintf("%s / %s", res.Request.Policy, res.Request.Condition)
		if res.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, res.Error)
			continue
		}

		base := filepath.Join(outputDir, resultFileName(i, res.Request))
		if err := report.RenderJSON(res.Result, base+".json"); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
			continue
		}
		if writeMD {
			if err := report.RenderMarkdown(res.Result, base+".md"); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
			}
		}

		if err := res.GetError(); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
			continue
		}
		succeeded++
		fmt.Fprintf(os.Stderr, "✓ %s: %s (%d/100)\n", label, res.Result.CoverageStatus, res.Result.FeasibilityScore)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failed)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

var fileNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", " ", "-",
)

// resultFileName builds a stable, filesystem-safe name for one request
func resultFileName(index int, req worker.Request) string {
	slug := strings.ToLower(fileNameReplacer.Replace(req.Policy + "-" + req.Condition))
	slug = strings.Trim(slug, ".-_")
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return fmt.Sprintf("%03d-%s", index+1, slug)
}
