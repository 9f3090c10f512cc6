package score

import (
	"fmt"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Rule table constants. Never learned or configured.
const (
	baseCovered          = 50
	basePartiallyCovered = 25

	pedWithinOneYear  = 20
	pedWithinTwoYears = 12

	noExclusionsBonus = 15
	exclusionPenalty  = -25

	noRiskFlagsBonus = 10
	riskFlagPenalty  = 5
	riskFlagCap      = 20

	coPayPenalty            = -5
	roomRentPercentPenalty  = -10
	roomRentFixedCapPenalty = -5

	minScore = 0
	maxScore = 100
)

// unrestrictedRoomRent are room rent texts that carry no penalty
var unrestrictedRoomRent = map[string]bool{
	"no limit":       true,
	"no sub-limits":  true,
	"no restriction": true,
}

// Scorer calculates the feasibility score and its breakdown.
// The analysis service only influences the inputs, never the arithmetic.
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Compute returns the clamped feasibility score
func Compute(status model.CoverageStatus, exclusions []string, riskFlags []model.RiskFlag, policy model.ScoringFields) int {
	return NewScorer().Calculate(status, exclusions, riskFlags, policy).Index
}

// Calculate applies every rule, sums the deltas and clamps to [0,100]
func (s *Scorer) Calculate(status model.CoverageStatus, exclusions []string, riskFlags []model.RiskFlag, policy model.ScoringFields) model.Score {
	signals := []model.Signal{
		s.coverageBase(status),
		s.preexistingWait(policy),
		s.exclusions(exclusions),
		s.riskFlags(riskFlags),
		s.coPay(policy),
		s.roomRent(policy),
	}

	raw := 0
	for _, sig := range signals {
		raw += sig.Delta
	}

	index := clamp(raw)
	if index != raw {
		signals = append(signals, model.Signal{
			Factor:      model.FactorClamp,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("Raw score %d clamped to %d", raw, index),
			Delta:       index - raw,
			Data: map[string]any{
				"raw":     raw,
				"formula": "max(0, min(100, raw))",
			},
		})
	}

	return model.Score{
		Index:   index,
		Raw:     raw,
		Signals: signals,
	}
}

func (s *Scorer) coverageBase(status model.CoverageStatus) model.Signal {
	delta := 0
	severity := model.SeverityCritical
	switch status {
	case model.StatusCovered:
		delta = baseCovered
		severity = model.SeverityInfo
	case model.StatusPartiallyCovered:
		delta = basePartiallyCovered
		severity = model.SeverityWarning
	}

	return model.Signal{
		Factor:      model.FactorCoverageBase,
		Severity:    severity,
		Description: fmt.Sprintf("Coverage status: %s", status),
		Delta:       delta,
		Data: map[string]any{
			"coverage_status": string(status),
			"formula":         "covered=+50, partially_covered=+25, excluded/unknown=0",
		},
	}
}

func (s *Scorer) preexistingWait(policy model.ScoringFields) model.Signal {
	years := policy.PreexistingWaitYears()

	delta := 0
	severity := model.SeverityWarning
	switch {
	case years <= 1:
		delta = pedWithinOneYear
		severity = model.SeverityInfo
	case years <= 2:
		delta = pedWithinTwoYears
		severity = model.SeverityInfo
	}

	return model.Signal{
		Factor:      model.FactorPreexisting,
		Severity:    severity,
		Description: fmt.Sprintf("Pre-existing disease wait: %d years", years),
		Delta:       delta,
		Data: map[string]any{
			"years":     years,
			"defaulted": policy.WaitingPeriodPreexistingYears == nil,
			"formula":   "<=1y=+20, <=2y=+12, else 0 (default 4y)",
		},
	}
}

func (s *Scorer) exclusions(exclusions []string) model.Signal {
	if len(exclusions) == 0 {
		return model.Signal{
			Factor:      model.FactorExclusions,
			Severity:    model.SeverityInfo,
			Description: "No applicable exclusion found",
			Delta:       noExclusionsBonus,
			Data:        map[string]any{"count": 0, "formula": "none=+15, any=-25"},
		}
	}

	return model.Signal{
		Factor:      model.FactorExclusions,
		Severity:    model.SeverityCritical,
		Description: fmt.Sprintf("%d applicable exclusion clause(s)", len(exclusions)),
		Delta:       exclusionPenalty,
		Data:        map[string]any{"count": len(exclusions), "formula": "none=+15, any=-25"},
	}
}

func (s *Scorer) riskFlags(flags []model.RiskFlag) model.Signal {
	if len(flags) == 0 {
		return model.Signal{
			Factor:      model.FactorRiskFlags,
			Severity:    model.SeverityInfo,
			Description: "No risk flags",
			Delta:       noRiskFlagsBonus,
			Data:        map[string]any{"count": 0, "formula": "none=+10, n>=1=-min(5n, 20)"},
		}
	}

	penalty := riskFlagPenalty * len(flags)
	if penalty > riskFlagCap {
		penalty = riskFlagCap
	}

	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = string(f)
	}

	return model.Signal{
		Factor:      model.FactorRiskFlags,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Risk flags: %s", strings.Join(names, ", ")),
		Delta:       -penalty,
		Data: map[string]any{
			"count":   len(flags),
			"flags":   names,
			"formula": "none=+10, n>=1=-min(5n, 20)",
		},
	}
}

func (s *Scorer) coPay(policy model.ScoringFields) model.Signal {
	pct := policy.CoPay()
	if pct > 0 {
		return model.Signal{
			Factor:      model.FactorCoPay,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Co-pay: %g%%", pct),
			Delta:       coPayPenalty,
			Data:        map[string]any{"percent": pct, "formula": ">0%=-5"},
		}
	}

	return model.Signal{
		Factor:      model.FactorCoPay,
		Severity:    model.SeverityInfo,
		Description: "No co-pay",
		Data:        map[string]any{"percent": pct, "formula": ">0%=-5"},
	}
}

func (s *Scorer) roomRent(policy model.ScoringFields) model.Signal {
	text := policy.RoomRent()
	data := map[string]any{
		"room_rent_limit": text,
		"formula":         "contains %=-10, other fixed cap=-5, none/no limit=0",
	}

	switch {
	case text != "" && strings.Contains(text, "%"):
		return model.Signal{
			Factor:      model.FactorRoomRentLimit,
			Severity:    model.SeverityCritical,
			Description: "Room rent capped as a percentage (proportional deduction risk)",
			Delta:       roomRentPercentPenalty,
			Data:        data,
		}
	case text != "" && !unrestrictedRoomRent[strings.ToLower(text)]:
		return model.Signal{
			Factor:      model.FactorRoomRentLimit,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Room rent capped: %s", text),
			Delta:       roomRentFixedCapPenalty,
			Data:        data,
		}
	}

	return model.Signal{
		Factor:      model.FactorRoomRentLimit,
		Severity:    model.SeverityInfo,
		Description: "No room rent restriction",
		Data:        data,
	}
}

func clamp(v int) int {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}
