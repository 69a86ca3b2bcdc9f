// errors.go - the closed error taxonomy every tier reports through, plus
// a dedup-aggregated multi-cause error for batch operations.

package aggo

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrorKind is the closed set of reasons an engine operation can fail.
type ErrorKind int

const (
	// InvalidPipeline: the pipeline document itself is malformed (unknown
	// stage, wrong argument shape, bad arity) and can never succeed.
	InvalidPipeline ErrorKind = iota
	// UnsupportedFeature: the pipeline is well-formed but names an
	// operator or stage option no tier implements.
	UnsupportedFeature
	// TypeError: an expression was evaluated against a value of a type it
	// cannot operate on (e.g. $add over a string).
	TypeError
	// Backpressure: a delta producer is paused because its ring buffer
	// consumer has fallen behind.
	Backpressure
	// RuntimeFailure: any other failure surfaced while running a compiled
	// plan (e.g. an invariant violation caught by a diagnostic assertion).
	RuntimeFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidPipeline:
		return "InvalidPipeline"
	case UnsupportedFeature:
		return "UnsupportedFeature"
	case TypeError:
		return "TypeError"
	case Backpressure:
		return "Backpressure"
	case RuntimeFailure:
		return "RuntimeFailure"
	default:
		return "Unknown"
	}
}

// ErrNotFound is returned by Query.One and PipelineHandle.One when nothing
// matches, and recorded in a BulkError for a Bulk removal whose primary
// key is not live. Store.FindByPK reports a miss with a bool instead.
var ErrNotFound = errors.New("aggo: not found")

// EngineError is the one error type aggo returns from compile, plan, and
// evaluation paths. Path is a best-effort dotted locator (stage index,
// field name, operator name) for diagnostics; it is not part of identity.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Path    string
}

func (e *EngineError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is supports errors.Is against the sentinel *EngineError{Kind: k} idiom:
// two EngineErrors match if their Kind matches, regardless of message.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewEngineError constructs an *EngineError.
func NewEngineError(kind ErrorKind, path, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...), Path: path}
}

// PlanError wraps the EngineError produced while validating or rewriting a
// pipeline prior to tier selection (the "it will never run" class of
// failure, as opposed to a runtime failure mid-execution).
type PlanError struct {
	*EngineError
	StageIndex int
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("stage %d: %s", e.StageIndex, e.EngineError.Error())
}

func (e *PlanError) Unwrap() error { return e.EngineError }

// MutationError reports a failed add/remove/update applied to an IVM
// handle; Kind is almost always RuntimeFailure or TypeError.
type MutationError struct {
	*EngineError
	PrimaryKey Value
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation on %s: %s", GroupKey(e.PrimaryKey), e.EngineError.Error())
}

func (e *MutationError) Unwrap() error { return e.EngineError }

// BulkErrorCase pairs a failed operation's position within a bulk batch
// with the error it produced.
type BulkErrorCase struct {
	Index int
	Err   error
}

// BulkError aggregates the errors from a bulk mutation, deduplicating
// identical messages so that one systemic failure applied to many
// documents doesn't drown the summary in repeats.
type BulkError struct {
	ecases []BulkErrorCase
}

func (e *BulkError) Error() string {
	if len(e.ecases) == 0 {
		return "aggo: invalid BulkError: no errors"
	}
	if len(e.ecases) == 1 {
		return e.ecases[0].Err.Error()
	}
	var buf bytes.Buffer
	buf.WriteString("multiple errors in bulk operation:\n")
	seen := make(map[string]bool, len(e.ecases))
	for _, c := range e.ecases {
		msg := c.Err.Error()
		if !seen[msg] {
			seen[msg] = true
			buf.WriteString("  - ")
			buf.WriteString(msg)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// Cases exposes the individual error cases contained in the BulkError.
func (e *BulkError) Cases() []BulkErrorCase { return e.ecases }

// newBulkError returns nil if cases is empty, and a *BulkError otherwise,
// so callers can always write `return newBulkError(cases)` without an
// explicit length check.
func newBulkError(cases []BulkErrorCase) error {
	if len(cases) == 0 {
		return nil
	}
	return &BulkError{ecases: cases}
}
