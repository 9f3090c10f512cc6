package retrieve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// ChunkDelimiter separates chunks in the context block
const ChunkDelimiter = "\n\n---\n\n"

// BuildContextBlock renders fused evidence in rank order:
//
//	[CHUNK 1 | Section: EXCLUSIONS | Page: 12]
//	<content>
func BuildContextBlock(chunks []model.EvidenceChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		page := "?"
		if c.PageNumber > 0 {
			page = strconv.Itoa(c.PageNumber)
		}
		parts = append(parts, fmt.Sprintf("[CHUNK %d | Section: %s | Page: %s]\n%s",
			i+1, c.SectionType.Label(), page, c.Content))
	}
	return strings.Join(parts, ChunkDelimiter)
}
