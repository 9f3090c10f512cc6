// Package pipeline runs a claim check end to end: resolve the policy, gather
// evidence, analyze it and score the result.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/claimcheck/internal/analyze"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/resolve"
	"github.com/ppiankov/claimcheck/internal/retrieve"
	"github.com/ppiankov/claimcheck/internal/score"
	"github.com/ppiankov/claimcheck/internal/telemetry"
)

// Store is the evidence store as the pipeline uses it
type Store interface {
	resolve.PolicySource
	retrieve.Searcher
}

// Options tunes pipeline behaviour
type Options struct {
	InsurerMatch model.InsurerMatchMode
	MaxTokens    int // Analysis reply budget, 0 = provider default
}

// Pipeline orchestrates one claim check. It holds no per-request state and
// is safe for concurrent use when its collaborators are.
type Pipeline struct {
	resolver  *resolve.Resolver
	retriever *retrieve.Retriever
	analyzer  *analyze.Analyzer
	scorer    *score.Scorer
	metrics   *telemetry.Metrics // nil disables metric recording
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New builds a pipeline over the three collaborators
func New(store Store, embedder retrieve.Embedder, completer analyze.Completer, opts Options) *Pipeline {
	logger := logging.New("pipeline")

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
		metrics = nil
	}

	return &Pipeline{
		resolver:  resolve.NewResolver(store, opts.InsurerMatch),
		retriever: retrieve.NewRetriever(store, embedder),
		analyzer:  analyze.NewAnalyzer(completer, opts.MaxTokens),
		scorer:    score.NewScorer(),
		metrics:   metrics,
		logger:    logger,
		tracer:    otel.Tracer("claimcheck/pipeline"),
	}
}

// Check runs the claim check for one policy reference. It never returns a Go
// error: every failure becomes an error-only result.
func (p *Pipeline) Check(ctx context.Context, ref, condition, treatment string) model.ClaimCheckResult {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.check", trace.WithAttributes(
		attribute.String("claimcheck.policy_ref", ref),
		attribute.String("claimcheck.condition", condition),
		attribute.String("claimcheck.treatment", treatment),
	))
	defer span.End()

	check, err := p.run(ctx, ref, condition, treatment)
	if err != nil {
		cerr := asCheckError(err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Kind))
		p.logger.InfoContext(ctx, "claim check failed",
			"policy", ref,
			"condition", condition,
			"error_kind", cerr.Kind,
			"error", cerr)
		p.record(ctx, string(cerr.Kind), start)
		return model.Failed(cerr)
	}

	span.SetAttributes(
		attribute.String("claimcheck.coverage_status", string(check.CoverageStatus)),
		attribute.Int("claimcheck.feasibility_score", check.FeasibilityScore),
	)
	p.logger.DebugContext(ctx, "claim check complete",
		"policy", check.PolicyName,
		"status", check.CoverageStatus,
		"score", check.FeasibilityScore,
		"chunks", check.ChunksUsed)
	p.record(ctx, "ok", start)
	if p.metrics != nil {
		p.metrics.RecordScore(ctx, string(check.CoverageStatus), check.FeasibilityScore, check.ChunksUsed)
	}
	return model.Succeeded(*check)
}

func (p *Pipeline) run(ctx context.Context, ref, condition, treatment string) (*model.ClaimCheck, error) {
	// 1. Resolve which document to search and which metadata to score against
	res, err := p.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, stageError(model.KindRetrievalFailure, "Policy lookup failed.", err)
	}

	// 2. Gather and fuse evidence; an empty set stops here
	chunks, err := p.retriever.Retrieve(ctx, res.SearchDocumentID, condition, treatment)
	if err != nil {
		return nil, stageError(model.KindRetrievalFailure, "Policy clause search failed.", err)
	}

	// 3. Render the evidence in fused rank order
	block := retrieve.BuildContextBlock(chunks)

	// 4. Grounded analysis
	analysis, err := p.analyzer.Analyze(ctx, block, condition, treatment)
	if err != nil {
		return nil, stageError(model.KindAnalysisFailure, "Policy analysis failed. Please try again later.", err)
	}

	// 5. Score from normalized analysis and policy metadata only
	s := p.scorer.Calculate(analysis.CoverageStatus, analysis.ExclusionsApplicable, analysis.RiskFlags, res.Metadata)

	return &model.ClaimCheck{
		PolicyName:           res.PolicyName,
		Diagnosis:            condition,
		TreatmentType:        treatment,
		CoverageStatus:       analysis.CoverageStatus,
		FeasibilityScore:     s.Index,
		SeverityRequirements: analysis.SeverityRequirements,
		WaitingPeriod:        analysis.WaitingPeriod,
		ExclusionsApplicable: analysis.ExclusionsApplicable,
		RiskFlags:            analysis.RiskFlags,
		RequiredDocuments:    analysis.RequiredDocuments,
		AnalysisSummary:      analysis.AnalysisSummary,
		ChunksUsed:           len(chunks),
		ScoreBreakdown:       s.Signals,
		AnalysisWarnings:     analysis.Warnings,
	}, nil
}

func (p *Pipeline) record(ctx context.Context, outcome string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordCheck(ctx, outcome, time.Since(start))
	}
}

// stageError passes classified failures through and classifies the rest by stage
func stageError(kind model.ErrorKind, msg string, err error) error {
	var cerr *model.CheckError
	if errors.As(err, &cerr) {
		return err
	}
	return model.NewCheckError(kind, err, "%s", msg)
}

func asCheckError(err error) *model.CheckError {
	var cerr *model.CheckError
	if errors.As(err, &cerr) {
		return cerr
	}
	return model.NewCheckError(model.KindAnalysisFailure, err, "Claim check failed.")
}
