package model

// ClaimCheck is the success body of a claim check
type ClaimCheck struct {
	PolicyName           string         `json:"policy_name"`
	Diagnosis            string         `json:"diagnosis"`
	TreatmentType        string         `json:"treatment_type"`
	CoverageStatus       CoverageStatus `json:"coverage_status"`
	FeasibilityScore     int            `json:"feasibility_score"`
	SeverityRequirements []string       `json:"severity_requirements"`
	WaitingPeriod        string         `json:"waiting_period"`
	ExclusionsApplicable []string       `json:"exclusions_applicable"`
	RiskFlags            []RiskFlag     `json:"risk_flags"`
	RequiredDocuments    []string       `json:"required_documents"`
	AnalysisSummary      string         `json:"analysis_summary"`
	ChunksUsed           int            `json:"chunks_used"`

	ScoreBreakdown   []Signal `json:"score_breakdown,omitempty"`
	AnalysisWarnings []string `json:"analysis_warnings,omitempty"`
}

// ClaimCheckResult is either a success body or an error, never both.
// The embedded pointer is nil on failure, so none of its fields are encoded.
type ClaimCheckResult struct {
	*ClaimCheck
	Error     *string   `json:"error"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Succeeded wraps a success body
func Succeeded(check ClaimCheck) ClaimCheckResult {
	return ClaimCheckResult{ClaimCheck: &check}
}

// Failed builds an error-only result
func Failed(err *CheckError) ClaimCheckResult {
	msg := err.Message
	if msg == "" {
		msg = err.Error()
	}
	return ClaimCheckResult{Error: &msg, ErrorKind: err.Kind}
}

// OK reports whether the result carries a success body
func (r ClaimCheckResult) OK() bool {
	return r.Error == nil && r.ClaimCheck != nil
}

// ErrorMessage returns the error text, empty on success
func (r ClaimCheckResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Signal documents one scoring rule as it was applied
type Signal struct {
	Factor      ScoreFactor    `json:"factor"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Delta       int            `json:"delta"`
	Data        map[string]any `json:"data,omitempty"` // Inputs and formula
}

// ScoreFactor names a row of the scoring rule table
type ScoreFactor string

const (
	FactorCoverageBase  ScoreFactor = "coverage_base"
	FactorPreexisting   ScoreFactor = "preexisting_wait"
	FactorExclusions    ScoreFactor = "exclusions"
	FactorRiskFlags     ScoreFactor = "risk_flags"
	FactorCoPay         ScoreFactor = "co_pay"
	FactorRoomRentLimit ScoreFactor = "room_rent_limit"
	FactorClamp         ScoreFactor = "clamp"
)

// SignalSeverity indicates whether a rule helped or hurt the score
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// Score is the deterministic feasibility score and its breakdown
type Score struct {
	Index   int      `json:"index"` // 0-100
	Raw     int      `json:"raw"`   // Sum before clamping
	Signals []Signal `json:"signals"`
}
