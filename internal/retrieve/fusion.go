package retrieve

import (
	"sort"

	"github.com/ppiankov/claimcheck/internal/model"
)

// RRFK is the Reciprocal Rank Fusion damping constant
const RRFK = 60

// FusedTopK caps the size of the fused evidence set
const FusedTopK = 10

// Dedupe drops chunks whose ID was already seen, keeping first-seen order.
// Chunks without an ID are dropped.
func Dedupe(chunks []model.EvidenceChunk) []model.EvidenceChunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]model.EvidenceChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// FuseRRF merges ranked lists with Reciprocal Rank Fusion.
//
// Each chunk scores sum(1/(k+rank)) over the lists it appears in, rank counted
// from 1 within each list. The result is sorted by fused score, ties keep
// first-seen order across the lists, and is truncated to topK. Score on the
// returned chunks is the fused score.
func FuseRRF(k, topK int, lists ...[]model.EvidenceChunk) []model.EvidenceChunk {
	type entry struct {
		chunk model.EvidenceChunk
		score float64
	}

	index := make(map[string]int)
	var entries []entry

	for _, list := range lists {
		rank := 0
		listSeen := make(map[string]struct{}, len(list))
		for _, c := range list {
			if c.ID == "" {
				continue
			}
			// A chunk repeated inside one list only counts at its best rank.
			if _, dup := listSeen[c.ID]; dup {
				continue
			}
			listSeen[c.ID] = struct{}{}
			rank++

			contribution := 1.0 / float64(k+rank)
			if i, ok := index[c.ID]; ok {
				entries[i].score += contribution
				continue
			}
			index[c.ID] = len(entries)
			entries = append(entries, entry{chunk: c, score: contribution})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	if topK > 0 && len(entries) > topK {
		entries = entries[:topK]
	}

	out := make([]model.EvidenceChunk, len(entries))
	for i, e := range entries {
		out[i] = e.chunk
		out[i].Score = e.score
	}
	return out
}
