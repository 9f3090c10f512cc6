package analyze

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ResultSchema describes a well-formed analysis reply.
// Violations are reported as warnings; normalization still runs.
const ResultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["coverage_status", "severity_requirements", "waiting_period", "exclusions_applicable", "risk_flags", "required_documents", "analysis_summary"],
  "properties": {
    "coverage_status": {"enum": ["covered", "partially_covered", "excluded", "unknown"]},
    "severity_requirements": {"type": "array", "items": {"type": "string"}},
    "waiting_period": {"type": "string"},
    "exclusions_applicable": {"type": "array", "items": {"type": "string"}},
    "risk_flags": {
      "type": "array",
      "items": {"enum": ["sub_limit_applies", "pre_auth_required", "proportional_deduction", "waiting_period_active", "co_pay_applicable", "documentation_intensive"]}
    },
    "required_documents": {"type": "array", "items": {"type": "string"}},
    "analysis_summary": {"type": "string"}
  }
}`

const schemaURL = "https://claimcheck.schemas.local/analysis.schema.json"

var (
	compiledOnce sync.Once
	compiled     *jsonschema.Schema
	compileErr   error
)

func resultSchema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, strings.NewReader(ResultSchema)); err != nil {
			compileErr = fmt.Errorf("analysis schema load failed: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("analysis schema compile failed: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// SchemaViolations validates raw against ResultSchema and returns one line
// per failing leaf, sorted. A nil slice means the reply is well-formed.
func SchemaViolations(raw map[string]any) ([]string, error) {
	schema, err := resultSchema()
	if err != nil {
		return nil, err
	}

	err = schema.Validate(raw)
	if err == nil {
		return nil, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate analysis reply: %w", err)
	}

	var out []string
	collectLeaves(ve, &out)
	sort.Strings(out)
	return out, nil
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("schema: %s: %s", loc, ve.Message))
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}
