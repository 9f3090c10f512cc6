package retrieve

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ppiankov/claimcheck/internal/model"
)

// idList draws chunk IDs from a small alphabet so lists overlap often
func idList() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 12)).Map(func(ns []int) []model.EvidenceChunk {
		out := make([]model.EvidenceChunk, len(ns))
		for i, n := range ns {
			out[i] = model.EvidenceChunk{ID: fmt.Sprintf("c%d", n)}
		}
		return out
	})
}

func TestFuseRRF_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("fusion is deterministic", prop.ForAll(
		func(a, b []model.EvidenceChunk) bool {
			first := FuseRRF(RRFK, FusedTopK, Dedupe(a), b)
			second := FuseRRF(RRFK, FusedTopK, Dedupe(a), b)
			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i].ID != second[i].ID || first[i].Score != second[i].Score {
					return false
				}
			}
			return true
		},
		idList(), idList(),
	))

	properties.Property("fused set never repeats an id", prop.ForAll(
		func(a, b []model.EvidenceChunk) bool {
			seen := map[string]bool{}
			for _, c := range FuseRRF(RRFK, FusedTopK, Dedupe(a), b) {
				if seen[c.ID] {
					return false
				}
				seen[c.ID] = true
			}
			return true
		},
		idList(), idList(),
	))

	properties.Property("fused set is bounded and sorted", prop.ForAll(
		func(a, b []model.EvidenceChunk) bool {
			fused := FuseRRF(RRFK, FusedTopK, Dedupe(a), b)
			if len(fused) > FusedTopK {
				return false
			}
			for i := 1; i < len(fused); i++ {
				if fused[i].Score > fused[i-1].Score {
					return false
				}
			}
			return true
		},
		idList(), idList(),
	))

	properties.Property("empty only when both inputs are empty", prop.ForAll(
		func(a, b []model.EvidenceChunk) bool {
			fused := FuseRRF(RRFK, FusedTopK, Dedupe(a), b)
			return (len(fused) == 0) == (len(a) == 0 && len(b) == 0)
		},
		idList(), idList(),
	))

	properties.TestingRun(t)
}
