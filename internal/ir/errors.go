package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes reduction errors.
type ErrorCode string

const (
	// ErrCodeLoad indicates a source could not be read or is corrupt.
	ErrCodeLoad ErrorCode = "LOAD_ERROR"

	// ErrCodeCongruency indicates a run's cross-section set differs from the
	// reduction list's states.
	ErrCodeCongruency ErrorCode = "CONGRUENCY_ERROR"

	// ErrCodeMatchNotFound indicates no direct beam lies within tolerance.
	// Not fatal: normalization stays unset.
	ErrCodeMatchNotFound ErrorCode = "MATCH_NOT_FOUND"

	// ErrCodeReduction indicates a numeric transform failed for one run.
	ErrCodeReduction ErrorCode = "REDUCTION_ERROR"

	// ErrCodeStitch indicates stitching could not determine scale factors.
	ErrCodeStitch ErrorCode = "STITCH_ERROR"

	// ErrCodeUnsupported indicates an operation called with arguments it
	// does not support, e.g. a merge of fewer than two sources.
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_OPERATION"
)

// Stitch failure reasons.
const (
	ReasonNoOverlap  = "NO_OVERLAP"
	ReasonPlateau    = "PLATEAU"
	ReasonTooFewRuns = "TOO_FEW_RUNS"
)

// Error is a reduction error with structured fields for diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Reason refines the category (stitch failures only).
	Reason string

	// Message is a human-readable description.
	Message string

	// Run identifies the affected run or source, when known.
	Run string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s[%s]: %s", e.Code, e.Reason, e.Message)
	}
	if e.Run != "" {
		msg = fmt.Sprintf("%s (run=%s)", msg, e.Run)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewLoadError creates an error for an unreadable or missing source.
func NewLoadError(source string, err error) *Error {
	return &Error{Code: ErrCodeLoad, Message: "could not load source", Run: source, Err: err}
}

// NewCongruencyError creates an error for a cross-section set mismatch.
func NewCongruencyError(run RunKey, got, want []string) *Error {
	return &Error{
		Code:    ErrCodeCongruency,
		Message: fmt.Sprintf("cross-sections %v differ from reduction states %v", got, want),
		Run:     string(run),
	}
}

// NewMatchNotFoundError creates an error for a run with no direct beam in tolerance.
func NewMatchNotFoundError(run RunKey) *Error {
	return &Error{Code: ErrCodeMatchNotFound, Message: "no direct beam within tolerance", Run: string(run)}
}

// NewReductionError creates an error for a failed numeric transform.
func NewReductionError(run string, message string) *Error {
	return &Error{Code: ErrCodeReduction, Message: message, Run: run}
}

// NewStitchError creates a stitch error with the given reason.
func NewStitchError(reason, message string) *Error {
	return &Error{Code: ErrCodeStitch, Reason: reason, Message: message}
}

// NewUnsupportedError creates an error for an unsupported call.
func NewUnsupportedError(message string) *Error {
	return &Error{Code: ErrCodeUnsupported, Message: message}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsLoadError reports whether err is a LOAD_ERROR.
func IsLoadError(err error) bool { return hasCode(err, ErrCodeLoad) }

// IsCongruencyError reports whether err is a CONGRUENCY_ERROR.
func IsCongruencyError(err error) bool { return hasCode(err, ErrCodeCongruency) }

// IsMatchNotFound reports whether err is a MATCH_NOT_FOUND.
func IsMatchNotFound(err error) bool { return hasCode(err, ErrCodeMatchNotFound) }

// IsReductionError reports whether err is a REDUCTION_ERROR.
func IsReductionError(err error) bool { return hasCode(err, ErrCodeReduction) }

// IsStitchError reports whether err is a STITCH_ERROR.
func IsStitchError(err error) bool { return hasCode(err, ErrCodeStitch) }

// IsUnsupported reports whether err is an UNSUPPORTED_OPERATION.
func IsUnsupported(err error) bool { return hasCode(err, ErrCodeUnsupported) }

// StitchReason returns the reason of a stitch error, or "" for other errors.
func StitchReason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code == ErrCodeStitch {
		return e.Reason
	}
	return ""
}
