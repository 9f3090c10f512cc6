package model

// CoverageStatus is the analyzer's coverage classification
type CoverageStatus string

const (
	StatusCovered          CoverageStatus = "covered"
	StatusPartiallyCovered CoverageStatus = "partially_covered"
	StatusExcluded         CoverageStatus = "excluded"
	StatusUnknown          CoverageStatus = "unknown"
)

// Valid reports whether s is one of the four recognized values
func (s CoverageStatus) Valid() bool {
	switch s {
	case StatusCovered, StatusPartiallyCovered, StatusExcluded, StatusUnknown:
		return true
	}
	return false
}

// RiskFlag is drawn from a fixed vocabulary
type RiskFlag string

const (
	RiskSubLimitApplies        RiskFlag = "sub_limit_applies"
	RiskPreAuthRequired        RiskFlag = "pre_auth_required"
	RiskProportionalDeduction  RiskFlag = "proportional_deduction"
	RiskWaitingPeriodActive    RiskFlag = "waiting_period_active"
	RiskCoPayApplicable        RiskFlag = "co_pay_applicable"
	RiskDocumentationIntensive RiskFlag = "documentation_intensive"
)

// RiskVocabulary lists every recognized risk flag in documentation order
var RiskVocabulary = []RiskFlag{
	RiskSubLimitApplies,
	RiskPreAuthRequired,
	RiskProportionalDeduction,
	RiskWaitingPeriodActive,
	RiskCoPayApplicable,
	RiskDocumentationIntensive,
}

// Known reports whether f belongs to the vocabulary
func (f RiskFlag) Known() bool {
	for _, v := range RiskVocabulary {
		if v == f {
			return true
		}
	}
	return false
}

// DefaultAnalysisSummary is used when the analysis service returns no summary
const DefaultAnalysisSummary = "Analysis could not be completed from available context."

// AnalysisResult is the normalized structured judgement for one query
type AnalysisResult struct {
	CoverageStatus       CoverageStatus `json:"coverage_status"`
	SeverityRequirements []string       `json:"severity_requirements"`
	WaitingPeriod        string         `json:"waiting_period"`
	ExclusionsApplicable []string       `json:"exclusions_applicable"`
	RiskFlags            []RiskFlag     `json:"risk_flags"`
	RequiredDocuments    []string       `json:"required_documents"`
	AnalysisSummary      string         `json:"analysis_summary"`

	// Warnings lists normalization repairs; never affects the score
	Warnings []string `json:"-"`
}
