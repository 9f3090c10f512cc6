package retrieve

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/claimcheck/internal/model"
)

func chunks(ids ...string) []model.EvidenceChunk {
	out := make([]model.EvidenceChunk, len(ids))
	for i, id := range ids {
		out[i] = model.EvidenceChunk{ID: id, Content: "text " + id}
	}
	return out
}

func ids(cs []model.EvidenceChunk) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestDedupe(t *testing.T) {
	in := chunks("a", "b", "a", "c", "", "b", "d")

	got := ids(Dedupe(in))
	want := []string{"a", "b", "c", "d"}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dedupe() mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupe_KeepsFirstSeenRecord(t *testing.T) {
	in := []model.EvidenceChunk{
		{ID: "a", Content: "first", Score: 0.9},
		{ID: "a", Content: "second", Score: 0.1},
	}

	got := Dedupe(in)
	if len(got) != 1 || got[0].Content != "first" {
		t.Errorf("expected first-seen record, got %+v", got)
	}
}

func TestFuseRRF_Scores(t *testing.T) {
	semantic := chunks("a", "b", "c")
	keyword := chunks("c", "d")

	got := FuseRRF(60, 10, semantic, keyword)

	want := map[string]float64{
		"a": 1.0 / 61,
		"b": 1.0 / 62,
		"c": 1.0/63 + 1.0/61,
		"d": 1.0 / 62,
	}
	for _, c := range got {
		if math.Abs(c.Score-want[c.ID]) > 1e-12 {
			t.Errorf("chunk %s: score %v, want %v", c.ID, c.Score, want[c.ID])
		}
	}

	// c appears in both lists and leads; b and d tie and keep first-seen order.
	if diff := cmp.Diff([]string{"c", "a", "b", "d"}, ids(got)); diff != "" {
		t.Errorf("FuseRRF() order mismatch (-want +got):\n%s", diff)
	}
}

func TestFuseRRF_TruncatesToTopK(t *testing.T) {
	var semantic []model.EvidenceChunk
	for i := 0; i < 15; i++ {
		semantic = append(semantic, model.EvidenceChunk{ID: fmt.Sprintf("s%02d", i)})
	}

	got := FuseRRF(RRFK, FusedTopK, semantic, nil)

	if len(got) != FusedTopK {
		t.Fatalf("expected %d chunks, got %d", FusedTopK, len(got))
	}
	if got[0].ID != "s00" || got[9].ID != "s09" {
		t.Errorf("unexpected truncation: %v", ids(got))
	}
}

func TestFuseRRF_Empty(t *testing.T) {
	if got := FuseRRF(RRFK, FusedTopK, nil, nil); len(got) != 0 {
		t.Errorf("expected empty fused set, got %v", ids(got))
	}
}

func TestFuseRRF_KeywordOnly(t *testing.T) {
	got := FuseRRF(RRFK, FusedTopK, nil, chunks("k1", "k2"))

	if diff := cmp.Diff([]string{"k1", "k2"}, ids(got)); diff != "" {
		t.Errorf("keyword-only fusion mismatch (-want +got):\n%s", diff)
	}
}

func TestFuseRRF_DuplicateWithinListCountsOnce(t *testing.T) {
	got := FuseRRF(60, 10, chunks("a", "a", "b"))

	if diff := cmp.Diff([]string{"a", "b"}, ids(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if math.Abs(got[1].Score-1.0/62) > 1e-12 {
		t.Errorf("b should rank 2nd in its list, score %v", got[1].Score)
	}
}

func TestBuildContextBlock(t *testing.T) {
	in := []model.EvidenceChunk{
		{ID: "1", Content: "Cataract surgery is excluded for two years.", SectionType: model.SectionExclusions, PageNumber: 12},
		{ID: "2", Content: "Inpatient hospitalization is covered."},
	}

	got := BuildContextBlock(in)
	want := "[CHUNK 1 | Section: EXCLUSIONS | Page: 12]\nCataract surgery is excluded for two years." +
		"\n\n---\n\n" +
		"[CHUNK 2 | Section: GENERAL | Page: ?]\nInpatient hospitalization is covered."

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildContextBlock() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildContextBlock_Empty(t *testing.T) {
	if got := BuildContextBlock(nil); got != "" {
		t.Errorf("expected empty block, got %q", got)
	}
}
