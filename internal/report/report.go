// Package report renders claim check results as JSON, Markdown and a
// terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// RenderJSON writes the result as indented JSON
func RenderJSON(result model.ClaimCheckResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteJSON encodes the result as indented JSON to w
func WriteJSON(w io.Writer, result model.ClaimCheckResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// RenderMarkdown writes the Markdown report
func RenderMarkdown(result model.ClaimCheckResult, path string) error {
	if err := os.WriteFile(path, []byte(Markdown(result)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown renders a result. Failed checks render only the guidance.
func Markdown(result model.ClaimCheckResult) string {
	var b strings.Builder

	if !result.OK() {
		b.WriteString("# Claim Check\n\n")
		fmt.Fprintf(&b, "**Could not complete** (`%s`)\n\n", result.ErrorKind)
		fmt.Fprintf(&b, "%s\n", result.ErrorMessage())
		return b.String()
	}

	c := result.ClaimCheck
	fmt.Fprintf(&b, "# Claim Check: %s\n\n", c.PolicyName)
	fmt.Fprintf(&b, "- **Diagnosis:** %s\n", c.Diagnosis)
	if c.TreatmentType != "" {
		fmt.Fprintf(&b, "- **Treatment:** %s\n", c.TreatmentType)
	}
	fmt.Fprintf(&b, "- **Coverage:** %s\n", statusLabel(c.CoverageStatus))
	fmt.Fprintf(&b, "- **Feasibility score:** %d/100\n", c.FeasibilityScore)
	if c.WaitingPeriod != "" {
		fmt.Fprintf(&b, "- **Waiting period:** %s\n", c.WaitingPeriod)
	}
	fmt.Fprintf(&b, "- **Clauses used:** %d\n\n", c.ChunksUsed)

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "%s\n\n", c.AnalysisSummary)

	if len(c.ExclusionsApplicable) > 0 {
		b.WriteString("## Applicable Exclusions\n\n")
		for _, e := range c.ExclusionsApplicable {
			fmt.Fprintf(&b, "> %s\n\n", e)
		}
	}

	if len(c.SeverityRequirements) > 0 {
		b.WriteString("## Severity Requirements\n\n")
		for _, s := range c.SeverityRequirements {
			fmt.Fprintf(&b, "> %s\n\n", s)
		}
	}

	if len(c.RiskFlags) > 0 {
		b.WriteString("## Risk Flags\n\n")
		for _, f := range c.RiskFlags {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}

	if len(c.RequiredDocuments) > 0 {
		b.WriteString("## Required Documents\n\n")
		for _, d := range c.RequiredDocuments {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(c.ScoreBreakdown) > 0 {
		b.WriteString("## Score Breakdown\n\n")
		b.WriteString("| Factor | Finding | Delta |\n")
		b.WriteString("|---|---|---:|\n")
		for _, s := range c.ScoreBreakdown {
			fmt.Fprintf(&b, "| %s | %s | %+d |\n", s.Factor, escapeCell(s.Description), s.Delta)
		}
		b.WriteString("\n")
	}

	if len(c.AnalysisWarnings) > 0 {
		b.WriteString("## Analysis Warnings\n\n")
		for _, w := range c.AnalysisWarnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	b.WriteString("*Based only on the indexed policy text. Not a claim decision.*\n")
	return b.String()
}

// RenderSummary prints a short terminal summary
func RenderSummary(w io.Writer, result model.ClaimCheckResult, showBreakdown bool) {
	if !result.OK() {
		fmt.Fprintf(w, "✗ %s\n  %s\n", result.ErrorKind, result.ErrorMessage())
		return
	}

	c := result.ClaimCheck
	fmt.Fprintf(w, "%s: %s for %s\n", c.PolicyName, statusLabel(c.CoverageStatus), c.Diagnosis)
	fmt.Fprintf(w, "  Feasibility: %d/100 (%d clauses)\n", c.FeasibilityScore, c.ChunksUsed)
	if c.WaitingPeriod != "" {
		fmt.Fprintf(w, "  Waiting period: %s\n", c.WaitingPeriod)
	}
	if len(c.RiskFlags) > 0 {
		flags := make([]string, len(c.RiskFlags))
		for i, f := range c.RiskFlags {
			flags[i] = string(f)
		}
		fmt.Fprintf(w, "  Risk flags: %s\n", strings.Join(flags, ", "))
	}
	if showBreakdown {
		for _, s := range c.ScoreBreakdown {
			fmt.Fprintf(w, "    %-16s %+4d  %s\n", s.Factor, s.Delta, s.Description)
		}
	}
}

func statusLabel(s model.CoverageStatus) string {
	switch s {
	case model.StatusCovered:
		return "Covered"
	case model.StatusPartiallyCovered:
		return "Partially covered"
	case model.StatusExcluded:
		return "Excluded"
	default:
		return "Unknown"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
