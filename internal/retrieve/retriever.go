// Package retrieve gathers, fuses and renders policy evidence for one claim check.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// CoverageQuery is embedded on every request to pull in the general
// hospitalization benefit clause.
const CoverageQuery = "inpatient hospitalization benefit covered illness treatment"

const (
	semanticTopK = 6
	coverageTopK = 4
	sectionTopK  = 4
	keywordTopK  = 10
)

// Searcher is the clause-search side of the evidence store
type Searcher interface {
	SemanticSearch(ctx context.Context, vector []float32, docID string, topK int) ([]model.EvidenceChunk, error)
	SectionSearch(ctx context.Context, vector []float32, docID string, sections []model.SectionType, topK int) ([]model.EvidenceChunk, error)
	KeywordSearch(ctx context.Context, text, docID string, topK int) ([]model.EvidenceChunk, error)
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever runs the multi-strategy search for one document
type Retriever struct {
	searcher Searcher
	embedder Embedder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewRetriever creates a retriever
func NewRetriever(searcher Searcher, embedder Embedder) *Retriever {
	return &Retriever{
		searcher: searcher,
		embedder: embedder,
		logger:   logging.New("retrieve"),
		tracer:   otel.Tracer("claimcheck/retrieve"),
	}
}

// Retrieve returns the fused evidence set for condition and treatment.
// Failures are *model.CheckError values; an empty fused set is a
// no_evidence_found error, never an empty success.
func (r *Retriever) Retrieve(ctx context.Context, docID, condition, treatment string) ([]model.EvidenceChunk, error) {
	ctx, span := r.tracer.Start(ctx, "retrieve.evidence")
	defer span.End()
	span.SetAttributes(attribute.String("claimcheck.document_id", docID))

	queryText := fmt.Sprintf("%s %s", condition, treatment)

	var (
		queryVec    []float32
		coverageVec []float32
		keyword     []model.EvidenceChunk
	)

	// Both embeddings and the keyword search are independent of each other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := r.embedder.Embed(gctx, queryText)
		if err != nil {
			return model.NewCheckError(model.KindEmbeddingFailure, err, "Embedding failed: %v", err)
		}
		queryVec = vec
		return nil
	})
	g.Go(func() error {
		vec, err := r.embedder.Embed(gctx, CoverageQuery)
		if err != nil {
			// Best effort: the query vector stands in.
			if !errors.Is(gctx.Err(), context.Canceled) {
				r.logger.WarnContext(ctx, "coverage query embedding failed, reusing query vector", "error", err)
			}
			return nil
		}
		coverageVec = vec
		return nil
	})
	g.Go(func() error {
		chunks, err := r.searcher.KeywordSearch(gctx, condition, docID, keywordTopK)
		if err != nil {
			return searchFailure("keyword", err)
		}
		keyword = chunks
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, r.fail(span, err)
	}
	if coverageVec == nil {
		coverageVec = queryVec
	}

	var semantic, coverage, sectioned []model.EvidenceChunk

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		chunks, err := r.searcher.SemanticSearch(gctx, queryVec, docID, semanticTopK)
		if err != nil {
			return searchFailure("semantic", err)
		}
		semantic = chunks
		return nil
	})
	g.Go(func() error {
		chunks, err := r.searcher.SemanticSearch(gctx, coverageVec, docID, coverageTopK)
		if err != nil {
			return searchFailure("coverage", err)
		}
		coverage = chunks
		return nil
	})
	g.Go(func() error {
		chunks, err := r.searcher.SectionSearch(gctx, queryVec, docID, model.ClaimSections, sectionTopK)
		if err != nil {
			return searchFailure("section", err)
		}
		sectioned = chunks
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, r.fail(span, err)
	}

	candidates := make([]model.EvidenceChunk, 0, len(semantic)+len(coverage)+len(sectioned))
	candidates = append(candidates, semantic...)
	candidates = append(candidates, coverage...)
	candidates = append(candidates, sectioned...)
	candidates = Dedupe(candidates)

	fused := FuseRRF(RRFK, FusedTopK, candidates, keyword)

	r.logger.DebugContext(ctx, "evidence fused",
		"document", docID,
		"semantic", len(semantic),
		"coverage", len(coverage),
		"section", len(sectioned),
		"keyword", len(keyword),
		"fused", len(fused))
	span.SetAttributes(
		attribute.Int("claimcheck.candidates", len(candidates)),
		attribute.Int("claimcheck.keyword_hits", len(keyword)),
		attribute.Int("claimcheck.chunks_used", len(fused)),
	)

	if len(fused) == 0 {
		return nil, r.fail(span, model.NewCheckError(model.KindNoEvidenceFound, nil,
			"No relevant policy clause found for '%s'. The policy document may not contain information about this condition, or the document may not be indexed correctly.",
			condition))
	}

	return fused, nil
}

func (r *Retriever) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func searchFailure(strategy string, err error) error {
	return model.NewCheckError(model.KindRetrievalFailure,
		fmt.Errorf("%s search: %w", strategy, err),
		"Policy clause search failed.")
}
