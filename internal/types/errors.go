package types

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================
//
// Three classes cover every failure the pipeline can surface:
//
//   - ValidationError: bad input, rejected synchronously, never retried.
//   - NotFoundError: a memory ref that does not resolve to a live artifact.
//   - ExternalDependencyError: the compliance checker or audit ledger is
//     unreachable. The only class the integrator catches generically.
//
// The linter and trust scorer never fail: malformed or missing fields are
// treated as absence, not errors.

// ValidationError reports input that violates a pipeline invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a memory ref with no live artifact behind it.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no live artifact for ref %s", e.Ref)
}

// ExternalDependencyError wraps a failure of an external collaborator.
type ExternalDependencyError struct {
	Dependency string // "compliance_checker", "audit_ledger"
	Err        error
}

func (e *ExternalDependencyError) Error() string {
	return fmt.Sprintf("external dependency %s failed: %v", e.Dependency, e.Err)
}

func (e *ExternalDependencyError) Unwrap() error { return e.Err }

// ErrEmptyProposalSet is returned when a deliberation has no proposals.
var ErrEmptyProposalSet = errors.New("deliberation task has no proposals")

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsExternalDependency reports whether err is (or wraps) an
// ExternalDependencyError.
func IsExternalDependency(err error) bool {
	var ed *ExternalDependencyError
	return errors.As(err, &ed)
}
