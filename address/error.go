// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"fmt"
)

// ErrorCode identifies a kind of address error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidAddress indicates an address string that does not decode:
	// a bad checksum, an unknown prefix or a payload of the wrong length.
	ErrInvalidAddress ErrorCode = iota

	// ErrWrongNetwork indicates an address of another network than the
	// one requested.
	ErrWrongNetwork

	// ErrInvalidBlindingKey indicates a blinding key that is not a valid
	// compressed public key.
	ErrInvalidBlindingKey

	// ErrUnsupportedScript indicates an output script no address form
	// exists for.
	ErrUnsupportedScript

	// numErrorCodes is the maximum error code number used in tests.  This
	// entry MUST be the last entry in the enum.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidAddress:     "ErrInvalidAddress",
	ErrWrongNetwork:       "ErrWrongNetwork",
	ErrInvalidBlindingKey: "ErrInvalidBlindingKey",
	ErrUnsupportedScript:  "ErrUnsupportedScript",
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

// Error identifies an address related error.
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

// addressError creates an Error given a set of arguments.
func addressError(c ErrorCode, format string, args ...interface{}) Error {
	return Error{ErrorCode: c, Description: fmt.Sprintf(format, args...)}
}
