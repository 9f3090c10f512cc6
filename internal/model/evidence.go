package model

import "strings"

// SectionType is the coarse clause category attached at indexing time
type SectionType string

const (
	SectionExclusions     SectionType = "exclusions"
	SectionCoverage       SectionType = "coverage"
	SectionWaitingPeriods SectionType = "waiting_periods"
	SectionConditions     SectionType = "conditions"
	SectionLimits         SectionType = "limits"
	SectionGeneral        SectionType = "general"
)

// ClaimSections are the sections the section-filtered search is restricted to
var ClaimSections = []SectionType{
	SectionExclusions,
	SectionCoverage,
	SectionWaitingPeriods,
	SectionConditions,
	SectionLimits,
}

// Label returns the uppercased tag used in the context block
func (s SectionType) Label() string {
	if s == "" {
		return strings.ToUpper(string(SectionGeneral))
	}
	return strings.ToUpper(string(s))
}

// EvidenceChunk is a unit of indexed policy text
type EvidenceChunk struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	SectionType SectionType `json:"section_type,omitempty"`
	PageNumber  int         `json:"page_number,omitempty"` // 0 = unknown
	Score       float64     `json:"score"`                 // Retrieval or fused score
}
