package analyze

import "fmt"

// Instructions is the fixed system prompt for grounded clause analysis.
// Status rules are listed in priority order.
const Instructions = `You analyze health insurance policy clauses. Decide whether a medical condition and treatment are covered, using only the policy excerpts in the CONTEXT BLOCK.

COVERAGE STATUS, first matching rule wins:
1. "excluded": the context lists this condition or treatment under exclusions, or states it is not covered, excluded, or not payable.
2. "partially_covered": coverage exists but a restriction applies to this condition: a waiting period for this kind of claim, a sub-limit or cap on this treatment, or a co-payment for this category.
3. "covered": the context states this condition is covered, OR the context covers inpatient hospitalization or illness treatment in general and this condition appears in no exclusion in the context. Ordinary medical conditions (surgery, illness requiring admission, cancer, heart disease, accidents, organ failure) belong here when not excluded.
4. "unknown": only when the context holds no coverage or exclusion information of any kind, for example a definitions page.

Prefer "covered" over "unknown" for ordinary medical conditions. Do not answer "unknown" only because the condition is not named when general hospitalization cover is present and no exclusion applies.

RULES:
- Use only the CONTEXT BLOCK. Do not use outside insurance knowledge.
- Earlier chunks are more relevant than later ones.
- Quote the context verbatim in exclusions_applicable and severity_requirements.
- risk_flags may only contain: sub_limit_applies, pre_auth_required, proportional_deduction, waiting_period_active, co_pay_applicable, documentation_intensive.
- analysis_summary is one or two decisive sentences citing the clause relied on.
- Reply with a single JSON object and nothing else.

JSON shape:
{
  "coverage_status": "covered | partially_covered | excluded | unknown",
  "severity_requirements": ["quoted criteria"],
  "waiting_period": "quoted waiting period text, or empty string",
  "exclusions_applicable": ["quoted exclusion clauses"],
  "risk_flags": ["sub_limit_applies"],
  "required_documents": ["discharge summary"],
  "analysis_summary": "one or two sentences"
}`

// BuildPrompt renders the user turn for one analysis
func BuildPrompt(contextBlock, condition, treatment string) string {
	return fmt.Sprintf(`CONTEXT BLOCK:
%s

CONDITION TO ANALYZE: %s
TREATMENT TYPE: %s

Decide whether this condition and treatment are covered, excluded or restricted using only the context block above. Answer "covered" when general hospitalization is covered and no exclusion matches this condition.`,
		contextBlock, condition, treatment)
}
