// Package analyze asks the analysis service for a grounded coverage judgement
// and normalizes whatever comes back.
package analyze

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Completer is the analysis service
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Analyzer runs grounded clause analysis
type Analyzer struct {
	completer Completer
	maxTokens int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewAnalyzer creates an analyzer; maxTokens 0 uses the provider default
func NewAnalyzer(completer Completer, maxTokens int) *Analyzer {
	return &Analyzer{
		completer: completer,
		maxTokens: maxTokens,
		logger:    logging.New("analyze"),
		tracer:    otel.Tracer("claimcheck/analyze"),
	}
}

// Analyze sends the context block with the condition and treatment at zero
// temperature. Only a failed call is an error (analysis_failure); malformed
// replies are normalized to defaults.
func (a *Analyzer) Analyze(ctx context.Context, contextBlock, condition, treatment string) (model.AnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "analyze.clauses")
	defer span.End()

	if strings.TrimSpace(contextBlock) == "" {
		err := model.NewCheckError(model.KindNoEvidenceFound, nil,
			"No relevant policy clause found for '%s'.", condition)
		span.SetStatus(codes.Error, err.Error())
		return model.AnalysisResult{}, err
	}

	resp, err := a.completer.Complete(ctx, llm.Request{
		System:      Instructions,
		Prompt:      BuildPrompt(contextBlock, condition, treatment),
		Temperature: 0,
		JSON:        true,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		msg := "Policy analysis failed. Please try again later."
		if errors.Is(err, llm.ErrUnavailable) {
			msg = "Policy analysis is temporarily unavailable. Please try again later."
		}
		return model.AnalysisResult{}, model.NewCheckError(model.KindAnalysisFailure, err, "%s", msg)
	}
	span.SetAttributes(
		attribute.String("claimcheck.llm_model", resp.Model),
		attribute.Int("claimcheck.llm_tokens", resp.TokensUsed),
	)

	raw, err := llm.DecodeObject(resp.Text)
	var warnings []string
	if err != nil {
		warnings = append(warnings, "reply is not a JSON object: "+err.Error())
		raw = map[string]any{}
	} else if violations, verr := SchemaViolations(raw); verr != nil {
		a.logger.WarnContext(ctx, "analysis schema unavailable", "error", verr)
	} else {
		warnings = append(warnings, violations...)
	}

	result := Normalize(raw)
	result.Warnings = append(warnings, result.Warnings...)

	if len(result.Warnings) > 0 {
		a.logger.WarnContext(ctx, "analysis reply repaired",
			"condition", condition, "warnings", len(result.Warnings))
	}
	a.logger.DebugContext(ctx, "analysis complete",
		"condition", condition, "status", result.CoverageStatus, "tokens", resp.TokensUsed)

	return result, nil
}
