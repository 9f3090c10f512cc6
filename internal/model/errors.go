package model

import "fmt"

// ErrorKind classifies a request-terminal claim check failure
type ErrorKind string

const (
	KindPolicyNotFound    ErrorKind = "policy_not_found"
	KindNoIndexedDocument ErrorKind = "no_indexed_document"
	KindEmbeddingFailure  ErrorKind = "embedding_failure"
	KindNoEvidenceFound   ErrorKind = "no_evidence_found"
	KindRetrievalFailure  ErrorKind = "retrieval_failure"
	KindAnalysisFailure   ErrorKind = "analysis_failure"
)

// CheckError is a terminal failure for one claim check request
type CheckError struct {
	Kind    ErrorKind
	Message string // User-facing guidance
	Err     error  // Underlying cause, if any
}

func (e *CheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// NewCheckError builds a CheckError
func NewCheckError(kind ErrorKind, err error, format string, args ...any) *CheckError {
	return &CheckError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
