// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec

import "fmt"

// ErrorCode identifies a kind of codec usage error.  Errors of the decoded
// data itself are reported by the wire and eljson packages.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrUnknownKind indicates a kind that the codec does not know.
	ErrUnknownKind ErrorCode = iota

	// ErrUnsupportedRecord indicates a record that has no binary form.
	ErrUnsupportedRecord

	// numErrorCodes is the maximum error code number used in tests.  This
	// entry MUST be the last entry in the enum.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnknownKind:       "ErrUnknownKind",
	ErrUnsupportedRecord: "ErrUnsupportedRecord",
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

// Error identifies a codec usage error.
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

// codecError creates an Error given a set of arguments.
func codecError(c ErrorCode, format string, args ...interface{}) Error {
	return Error{ErrorCode: c, Description: fmt.Sprintf(format, args...)}
}
