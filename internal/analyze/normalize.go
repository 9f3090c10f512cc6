package analyze

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Normalize turns a decoded reply into an AnalysisResult. It never fails:
// missing or malformed fields fall back to defaults and each repair is
// recorded in Warnings.
func Normalize(raw map[string]any) model.AnalysisResult {
	n := normalizer{raw: raw}

	res := model.AnalysisResult{
		CoverageStatus:       n.status(),
		SeverityRequirements: n.list("severity_requirements"),
		WaitingPeriod:        n.text("waiting_period"),
		ExclusionsApplicable: n.list("exclusions_applicable"),
		RiskFlags:            n.riskFlags(),
		RequiredDocuments:    n.list("required_documents"),
		AnalysisSummary:      n.text("analysis_summary"),
	}
	if res.AnalysisSummary == "" {
		res.AnalysisSummary = model.DefaultAnalysisSummary
	}
	res.Warnings = n.warnings
	return res
}

type normalizer struct {
	raw      map[string]any
	warnings []string
}

func (n *normalizer) warn(format string, args ...any) {
	n.warnings = append(n.warnings, fmt.Sprintf(format, args...))
}

func (n *normalizer) status() model.CoverageStatus {
	v, ok := n.raw["coverage_status"]
	if !ok || v == nil {
		n.warn("coverage_status missing, using unknown")
		return model.StatusUnknown
	}
	s, ok := v.(string)
	if !ok {
		n.warn("coverage_status is %T, using unknown", v)
		return model.StatusUnknown
	}
	// Exact match only: "Covered" or " covered" is not a recognized value.
	status := model.CoverageStatus(s)
	if !status.Valid() {
		n.warn("coverage_status %q not recognized, using unknown", s)
		return model.StatusUnknown
	}
	return status
}

// list reads a list of strings. Absent means empty; a bare string becomes
// a one-item list; non-string and blank items are dropped.
func (n *normalizer) list(field string) []string {
	out := []string{}

	switch v := n.raw[field].(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(v); s != "" {
			n.warn("%s is a string, wrapping in a list", field)
			out = append(out, s)
		}
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				n.warn("%s[%d] is %T, dropped", field, i, item)
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		n.warn("%s is %T, using empty list", field, v)
	}

	return out
}

func (n *normalizer) text(field string) string {
	switch v := n.raw[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		n.warn("%s is a number, converted to text", field)
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		n.warn("%s is %T, ignored", field, v)
		return ""
	}
}

// riskFlags keeps vocabulary members only, once each, in reply order
func (n *normalizer) riskFlags() []model.RiskFlag {
	out := []model.RiskFlag{}
	seen := map[model.RiskFlag]bool{}

	for _, s := range n.list("risk_flags") {
		flag := model.RiskFlag(strings.ToLower(s))
		if !flag.Known() {
			n.warn("risk flag %q not in vocabulary, dropped", s)
			continue
		}
		if seen[flag] {
			n.warn("risk flag %q repeated, counted once", s)
			continue
		}
		seen[flag] = true
		out = append(out, flag)
	}

	return out
}
