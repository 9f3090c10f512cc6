package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/retrieve"
	"github.com/ppiankov/claimcheck/internal/store"
)

type fakeEmbedder struct {
	fail error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if text == retrieve.CoverageQuery {
		return []float32{0, 1}, nil
	}
	return []float32{1, 0}, nil
}

type fakeCompleter struct {
	reply string
	err   error

	calls  atomic.Int32
	mu     sync.Mutex
	prompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompt = req.Prompt
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.reply, Model: "fake"}, nil
}

const coveredReply = `{
  "coverage_status": "covered",
  "severity_requirements": [],
  "waiting_period": "",
  "exclusions_applicable": [],
  "risk_flags": [],
  "required_documents": ["Discharge summary"],
  "analysis_summary": "Cataract surgery is covered under in-patient benefits."
}`

func openSeededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	ctx := context.Background()

	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "claims.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	must(st.PutCatalogPolicy(ctx, model.CatalogPolicy{
		ID:      "tata-medicare",
		Name:    "Medicare Premier",
		Insurer: "Tata AIG",
		ScoringFields: model.ScoringFields{
			WaitingPeriodPreexistingYears: model.IntPtr(1),
			CoPayPercent:                  model.FloatPtr(0),
			RoomRentLimit:                 model.StringPtr("No limit"),
		},
	}))
	must(st.PutCatalogPolicy(ctx, model.CatalogPolicy{ID: "star-comprehensive", Name: "Comprehensive", Insurer: "Star Health"}))

	_, err = st.PutUploadedPolicy(ctx, model.UploadedPolicy{ID: "doc-tata", Insurer: "Tata AIG", Status: model.UploadStatusIndexed})
	must(err)
	_, err = st.PutUploadedPolicy(ctx, model.UploadedPolicy{ID: "doc-empty", UserLabel: "Scanned copy", Status: model.UploadStatusIndexed})
	must(err)

	must(st.PutChunk(ctx, "doc-tata", 0, model.EvidenceChunk{
		ID: "t-1", Content: "Cataract surgery is payable up to the sum insured.", SectionType: model.SectionCoverage, PageNumber: 4,
	}, []float32{1, 0}))
	must(st.PutChunk(ctx, "doc-tata", 1, model.EvidenceChunk{
		ID: "t-2", Content: "In-patient hospitalization expenses are covered.", SectionType: model.SectionCoverage, PageNumber: 2,
	}, []float32{0, 1}))
	must(st.PutChunk(ctx, "doc-tata", 2, model.EvidenceChunk{
		ID: "t-3", Content: "Cosmetic treatment is excluded.", SectionType: model.SectionExclusions, PageNumber: 9,
	}, []float32{0.6, 0.8}))

	return st
}

func TestCheck_CatalogPolicy(t *testing.T) {
	st := openSeededStore(t)
	completer := &fakeCompleter{reply: coveredReply}
	p := New(st, &fakeEmbedder{}, completer, Options{})

	res := p.Check(context.Background(), "tata-medicare", "Cataract", "surgery")
	if !res.OK() {
		t.Fatalf("Check() failed: %s (%s)", res.ErrorMessage(), res.ErrorKind)
	}

	if res.PolicyName != "Medicare Premier" {
		t.Errorf("PolicyName = %q, want %q", res.PolicyName, "Medicare Premier")
	}
	if res.Diagnosis != "Cataract" || res.TreatmentType != "surgery" {
		t.Errorf("Diagnosis/TreatmentType = %q/%q", res.Diagnosis, res.TreatmentType)
	}
	if res.CoverageStatus != model.StatusCovered {
		t.Errorf("CoverageStatus = %q, want covered", res.CoverageStatus)
	}
	// 50 + 20 + 15 + 10
	if res.FeasibilityScore != 95 {
		t.Errorf("FeasibilityScore = %d, want 95", res.FeasibilityScore)
	}
	if res.ChunksUsed != 3 {
		t.Errorf("ChunksUsed = %d, want 3", res.ChunksUsed)
	}
	if len(res.ScoreBreakdown) == 0 {
		t.Error("ScoreBreakdown is empty")
	}
	if !strings.Contains(completer.prompt, "[CHUNK 1 | Section: COVERAGE | Page: 4]") {
		t.Errorf("prompt does not start with the top-ranked chunk:\n%s", completer.prompt)
	}
}

func TestCheck_CatalogPolicyWithoutDocument(t *testing.T) {
	st := openSeededStore(t)
	completer := &fakeCompleter{reply: coveredReply}
	p := New(st, &fakeEmbedder{}, completer, Options{})

	res := p.Check(context.Background(), "star-comprehensive", "Cataract", "surgery")

	if res.OK() || res.ClaimCheck != nil {
		t.Fatal("expected an error-only result")
	}
	if res.ErrorKind != model.KindNoIndexedDocument {
		t.Errorf("ErrorKind = %q, want %q", res.ErrorKind, model.KindNoIndexedDocument)
	}
	if !strings.Contains(res.ErrorMessage(), "Star Health") || !strings.Contains(res.ErrorMessage(), "upload") {
		t.Errorf("message should name the insurer and ask for an upload: %q", res.ErrorMessage())
	}
	if completer.calls.Load() != 0 {
		t.Error("analysis service must not be called")
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "feasibility_score") {
		t.Errorf("failed result leaks success fields: %s", data)
	}
}

func TestCheck_PolicyNotFound(t *testing.T) {
	st := openSeededStore(t)
	p := New(st, &fakeEmbedder{}, &fakeCompleter{reply: coveredReply}, Options{})

	res := p.Check(context.Background(), "no-such-policy", "Cataract", "surgery")
	if res.ErrorKind != model.KindPolicyNotFound {
		t.Errorf("ErrorKind = %q, want %q", res.ErrorKind, model.KindPolicyNotFound)
	}
	if res.ErrorMessage() == "" {
		t.Error("error message is empty")
	}
}

func TestCheck_NoEvidence(t *testing.T) {
	st := openSeededStore(t)
	completer := &fakeCompleter{reply: coveredReply}
	p := New(st, &fakeEmbedder{}, completer, Options{})

	res := p.Check(context.Background(), "doc-empty", "Dengue", "hospitalization")

	if res.ErrorKind != model.KindNoEvidenceFound {
		t.Fatalf("ErrorKind = %q, want %q", res.ErrorKind, model.KindNoEvidenceFound)
	}
	if !strings.Contains(res.ErrorMessage(), "Dengue") {
		t.Errorf("message should name the condition: %q", res.ErrorMessage())
	}
	if completer.calls.Load() != 0 {
		t.Error("analysis service must never see an empty context")
	}
}

func TestCheck_EmbeddingFailure(t *testing.T) {
	st := openSeededStore(t)
	p := New(st, &fakeEmbedder{fail: errors.New("quota exceeded")}, &fakeCompleter{reply: coveredReply}, Options{})

	res := p.Check(context.Background(), "doc-tata", "Cataract", "surgery")
	if res.ErrorKind != model.KindEmbeddingFailure {
		t.Errorf("ErrorKind = %q, want %q", res.ErrorKind, model.KindEmbeddingFailure)
	}
}

func TestCheck_AnalysisFailure(t *testing.T) {
	st := openSeededStore(t)
	p := New(st, &fakeEmbedder{}, &fakeCompleter{err: errors.New("502 bad gateway")}, Options{})

	res := p.Check(context.Background(), "doc-tata", "Cataract", "surgery")
	if res.ErrorKind != model.KindAnalysisFailure {
		t.Errorf("ErrorKind = %q, want %q", res.ErrorKind, model.KindAnalysisFailure)
	}
	if res.ClaimCheck != nil {
		t.Error("failed result carries a success body")
	}
}

func TestCheck_MalformedReplyDegrades(t *testing.T) {
	st := openSeededStore(t)
	p := New(st, &fakeEmbedder{}, &fakeCompleter{reply: "I cannot answer that."}, Options{})

	res := p.Check(context.Background(), "doc-tata", "Cataract", "surgery")
	if !res.OK() {
		t.Fatalf("Check() failed: %s", res.ErrorMessage())
	}
	if res.CoverageStatus != model.StatusUnknown {
		t.Errorf("CoverageStatus = %q, want unknown", res.CoverageStatus)
	}
	if res.AnalysisSummary != model.DefaultAnalysisSummary {
		t.Errorf("AnalysisSummary = %q, want default", res.AnalysisSummary)
	}
	if len(res.AnalysisWarnings) == 0 {
		t.Error("expected analysis warnings")
	}
	// unknown 0 + one-year PED wait from the Tata catalog 20 + no exclusions 15 + no flags 10
	if res.FeasibilityScore != 45 {
		t.Errorf("FeasibilityScore = %d, want 45", res.FeasibilityScore)
	}
}

func TestCheck_UnknownRiskFlagsDoNotCostPoints(t *testing.T) {
	st := openSeededStore(t)
	reply := `{
  "coverage_status": "covered",
  "exclusions_applicable": [],
  "risk_flags": ["pre-auth required", "sub limit"],
  "analysis_summary": "Covered with pre-authorisation."
}`
	p := New(st, &fakeEmbedder{}, &fakeCompleter{reply: reply}, Options{})

	res := p.Check(context.Background(), "tata-medicare", "Cataract", "surgery")
	if !res.OK() {
		t.Fatalf("Check() failed: %s", res.ErrorMessage())
	}
	if len(res.RiskFlags) != 0 {
		t.Errorf("RiskFlags = %v, want none", res.RiskFlags)
	}
	// Counting both flags would give 50 + 20 + 15 - 10 = 75; off-vocabulary flags are dropped instead.
	if res.FeasibilityScore != 95 {
		t.Errorf("FeasibilityScore = %d, want 95", res.FeasibilityScore)
	}
	var dropped int
	for _, w := range res.AnalysisWarnings {
		if strings.Contains(w, "not in vocabulary") {
			dropped++
		}
	}
	if dropped != 2 {
		t.Errorf("AnalysisWarnings = %v, want two dropped-flag warnings", res.AnalysisWarnings)
	}
}

func TestCheck_Concurrent(t *testing.T) {
	st := openSeededStore(t)
	p := New(st, &fakeEmbedder{}, &fakeCompleter{reply: coveredReply}, Options{})

	var wg sync.WaitGroup
	results := make([]model.ClaimCheckResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Check(context.Background(), "tata-medicare", "Cataract", "surgery")
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if !res.OK() || res.FeasibilityScore != 95 {
			t.Errorf("result %d = %+v (%s)", i, res.ClaimCheck, res.ErrorMessage())
		}
	}
}
