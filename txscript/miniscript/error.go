package miniscript

import (
	"fmt"
)

// ErrorCode identifies a kind of miniscript error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrUnrecognizedPattern indicates that a script does not correspond to
	// any miniscript fragment tree, or that its only candidate tree fails
	// type checking.
	ErrUnrecognizedPattern ErrorCode = iota

	// ErrLimitExceeded indicates that a fragment tree violates one of the
	// resource limits of its context: script size, op count, satisfaction
	// stack items or multisig key count.
	ErrLimitExceeded
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnrecognizedPattern: "ErrUnrecognizedPattern",
	ErrLimitExceeded:       "ErrLimitExceeded",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error satisfies the error interface so an ErrorCode can be used as an
// errors.Is target.
func (e ErrorCode) Error() string {
	return e.String()
}

// Error identifies a miniscript related error that is not tied to a position
// inside a script.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the error code so that errors.Is can match on it.
func (e Error) Unwrap() error {
	return e.ErrorCode
}

// limitError creates an Error for an exceeded resource limit.
func limitError(format string, args ...interface{}) Error {
	return Error{
		ErrorCode:   ErrLimitExceeded,
		Description: fmt.Sprintf(format, args...),
	}
}

// AnalysisError describes the position inside a script at which analysis
// failed.  Offset is the byte offset of the offending opcode and Opcode its
// value.
type AnalysisError struct {
	Offset      int
	Opcode      byte
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e *AnalysisError) Error() string {
	return fmt.Sprintf("unrecognized pattern at offset %d (opcode 0x%02x): "+
		"%s", e.Offset, e.Opcode, e.Description)
}

// Unwrap returns ErrUnrecognizedPattern, the code of every analysis failure.
func (e *AnalysisError) Unwrap() error {
	return ErrUnrecognizedPattern
}
