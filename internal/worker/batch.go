package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Checker runs one claim check
type Checker interface {
	Check(ctx context.Context, ref, condition, treatment string) model.ClaimCheckResult
}

// Request is one entry of a batch file
type Request struct {
	Policy    string `yaml:"policy" json:"policy"`
	Condition string `yaml:"condition" json:"condition"`
	Treatment string `yaml:"treatment" json:"treatment"`
}

func (r Request) key() string {
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(r.Policy),
		strings.TrimSpace(r.Condition),
		strings.TrimSpace(r.Treatment),
	}, "\x00"))
}

// CheckJob is a single claim check request
type CheckJob struct {
	Request Request
	Checker Checker
	Limiter *Limiter // nil disables throttling
}

// Execute waits for the limiter and runs the check
func (j *CheckJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Request.Policy); err != nil {
			return &CheckResult{Request: j.Request, Error: err}
		}
	}
	res := j.Checker.Check(ctx, j.Request.Policy, j.Request.Condition, j.Request.Treatment)
	return &CheckResult{Request: j.Request, Result: res}
}

// CheckResult pairs a request with its outcome. Error is set only when the
// check never ran; a failed check is an error-only Result.
type CheckResult struct {
	Request Request
	Result  model.ClaimCheckResult
	Error   error
}

// GetError returns the scheduling error or the check's own failure
func (r *CheckResult) GetError() error {
	if r.Error != nil {
		return r.Error
	}
	if !r.Result.OK() {
		return fmt.Errorf("%s: %s", r.Result.ErrorKind, r.Result.ErrorMessage())
	}
	return nil
}

// BatchProcessor runs many claim checks concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
	burst       int
	limiter     *Limiter
}

// NewBatchProcessor creates a processor; requestsPerSecond <= 0 disables throttling
func NewBatchProcessor(checker Checker, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	b := &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
		burst:       burst,
	}
	if requestsPerSecond > 0 {
		b.limiter = NewLimiter(requestsPerSecond, burst)
	}
	return b
}

// SetPolicyRates overrides the per-policy rate for the listed policy references.
// Other policies keep the processor's default rate.
func (b *BatchProcessor) SetPolicyRates(rates map[string]float64) {
	if len(rates) == 0 {
		return
	}
	if b.limiter == nil {
		b.limiter = NewLimiter(0, b.burst)
	}
	for policy, rps := range rates {
		b.limiter.SetKeyRate(policy, rps, b.burst)
	}
}

// ProcessRequests runs every request and returns results in request order
func (b *BatchProcessor) ProcessRequests(ctx context.Context, reqs []Request) []*CheckResult {
	if len(reqs) == 0 {
		return []*CheckResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, req := range reqs {
		job := &CheckJob{
			Request: req,
			Checker: b.checker,
			Limiter: b.limiter,
		}
		if err := pool.Submit(job); err != nil {
			break
		}
	}

	results := pool.Wait()

	out := make([]*CheckResult, len(reqs))
	for i := range reqs {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*CheckResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = errors.New("check not run")
		}
		out[i] = &CheckResult{Request: reqs[i], Error: err}
	}
	return out
}

// ProcessFile reads requests from a file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	reqs, err := ReadRequestsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	return b.ProcessRequests(ctx, reqs), nil
}

// ReadRequestsFromFile reads a YAML or JSON list of requests, either bare or
// under a "requests" key. Duplicate requests are dropped.
func ReadRequestsFromFile(filePath string) ([]Request, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return ParseRequests(data)
}

// ParseRequests decodes request file content
func ParseRequests(data []byte) ([]Request, error) {
	if strings.TrimSpace(string(data)) == "" {
		return []Request{}, nil
	}

	var reqs []Request
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		var wrapped struct {
			Requests []Request `yaml:"requests"`
		}
		if werr := yaml.Unmarshal(data, &wrapped); werr != nil {
			return nil, fmt.Errorf("parse requests: %w", err)
		}
		reqs = wrapped.Requests
	}

	out := make([]Request, 0, len(reqs))
	seen := make(map[string]bool)
	for i, r := range reqs {
		r.Policy = strings.TrimSpace(r.Policy)
		r.Condition = strings.TrimSpace(r.Condition)
		r.Treatment = strings.TrimSpace(r.Treatment)

		if r.Policy == "" {
			return nil, fmt.Errorf("request %d: policy is required", i+1)
		}
		if r.Condition == "" {
			return nil, fmt.Errorf("request %d: condition is required", i+1)
		}

		if seen[r.key()] {
			continue
		}
		seen[r.key()] = true
		out = append(out, r)
	}

	return out, nil
}
