// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"
)

// ErrorCode identifies a kind of script error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrMalformedScript is returned when a script can not be tokenized,
	// e.g. because a push runs past its end.
	ErrMalformedScript ErrorCode = iota

	// ErrNotPegout is returned when a script does not follow the pegout
	// template.
	ErrNotPegout

	// ErrUnsupportedScript is returned when no address or template can be
	// derived for a script.
	ErrUnsupportedScript

	// ErrInvalidProgram is returned for a witness program of the wrong
	// version or length.
	ErrInvalidProgram

	// numErrorCodes is the maximum error code number used in tests.  This
	// entry MUST be the last entry in the enum.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrMalformedScript:   "ErrMalformedScript",
	ErrNotPegout:         "ErrNotPegout",
	ErrUnsupportedScript: "ErrUnsupportedScript",
	ErrInvalidProgram:    "ErrInvalidProgram",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error satisfies the error interface so that an ErrorCode can be used as an
// errors.Is target.
func (e ErrorCode) Error() string {
	return e.String()
}

// Error identifies a script-related error.  It is used to indicate three
// classes of errors:
//  1. Scripts that can not be tokenized
//  2. Scripts that do not follow an expected template
//  3. Arguments that can not be turned into a script
//
// The caller can use type assertions on the returned errors to access the
// ErrorCode field to ascertain the specific reason for the error.
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

// scriptError creates an Error given a set of arguments.
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}
