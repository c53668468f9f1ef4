package dataprocessing

import (
	"errors"
	"fmt"
)

// ErrInvalidViewKind is returned by View for kinds other than head, tail and range.
var ErrInvalidViewKind = errors.New("invalid view type")

// ParseError reports input that is not a well-formed table.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %s", e.Line, e.Msg)
	}
	return "parse error: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ProcessingError wraps unexpected failures inside the engine, including
// recovered panics.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// recoverProcessing turns a panic into a ProcessingError assigned to *errp.
func recoverProcessing(op string, errp *error) {
	if r := recover(); r != nil {
		*errp = &ProcessingError{Op: op, Err: fmt.Errorf("panic: %v", r)}
	}
}
