package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/report"
	"github.com/ppiankov/claimcheck/internal/telemetry"
)

var (
	policyRef    string
	condition    string
	treatment    string
	jsonOut      string
	mdOut        string
	checkTimeout time.Duration
	printJSON    bool
)

// ErrCheckFailed is returned when the check ran but produced an error result.
// The result has already been printed.
var ErrCheckFailed = errors.New("claim check failed")

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a claim is likely covered by a policy",
	Long: `Check runs one grounded coverage check:
- Resolve the policy reference to a catalog policy or an uploaded document
- Retrieve the policy clauses relevant to the condition and treatment
- Ask the analysis service to classify coverage using only those clauses
- Score feasibility 0-100 with fixed rules

Examples:
  claimcheck check --policy "Star Health Comprehensive" --condition cataract
  claimcheck check --policy 4f1c... --condition "knee replacement" --treatment surgery --json result.json
  claimcheck check --policy "Care Supreme" --condition diabetes --md report.md --breakdown`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&policyRef, "policy", "p", "", "policy id or name (required)")
	checkCmd.Flags().StringVarP(&condition, "condition", "c", "", "diagnosed condition (required)")
	checkCmd.Flags().StringVarP(&treatment, "treatment", "t", "", "planned treatment")
	checkCmd.Flags().StringVar(&jsonOut, "json", "", "write the JSON result to file")
	checkCmd.Flags().StringVar(&mdOut, "md", "", "write a Markdown report to file")
	checkCmd.Flags().BoolVar(&printJSON, "print-json", false, "print the JSON result to stdout instead of a summary")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 2*time.Minute, "timeout for the whole check")
	checkCmd.Flags().Bool("breakdown", true, "show the score breakdown in the summary")

	_ = checkCmd.MarkFlagRequired("policy")
	_ = checkCmd.MarkFlagRequired("condition")
	_ = viper.BindPFlag("output.show_breakdown", checkCmd.Flags().Lookup("breakdown"))
}

func runCheck(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(policyRef) == "" || strings.TrimSpace(condition) == "" {
		return fmt.Errorf("--policy and --condition must not be empty")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	cfg, rt, shutdown, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	result := rt.Check(ctx, policyRef, condition, treatment)

	if jsonOut != "" {
		if err := report.RenderJSON(result, jsonOut); err != nil {
			return fmt.Errorf("write JSON report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON result: %s\n", jsonOut)
	}
	if mdOut != "" {
		if err := report.RenderMarkdown(result, mdOut); err != nil {
			return fmt.Errorf("write Markdown report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", mdOut)
	}

	if printJSON {
		if err := report.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		report.RenderSummary(cmd.OutOrStdout(), result, cfg.Output.ShowBreakdown)
	}

	if !result.OK() {
		return fmt.Errorf("%w: %s", ErrCheckFailed, result.ErrorKind)
	}
	return nil
}

// openRuntime loads config, starts telemetry and builds the pipeline runtime.
// The returned func releases everything in reverse order.
func openRuntime(ctx context.Context) (*model.Config, *pipeline.Runtime, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init telemetry: %w", err)
	}

	rt, err := pipeline.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = shutdownTelemetry(context.Background())
		return nil, nil, nil, err
	}

	shutdown := func() {
		if err := rt.Close(); err != nil {
			slog.Warn("close runtime", slog.String("error", err.Error()))
		}
		// ctx may already be expired; flush with a fresh deadline.
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("shutdown telemetry", slog.String("error", err.Error()))
		}
	}
	return cfg, rt, shutdown, nil
}
