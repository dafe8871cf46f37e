// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"
)

// ErrorCode identifies a kind of descriptor error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidDescriptor indicates a descriptor that does not parse, or
	// whose miniscript is not a sane top level expression.
	ErrInvalidDescriptor ErrorCode = iota

	// ErrInvalidChecksum indicates a descriptor checksum that does not
	// match the descriptor.
	ErrInvalidChecksum

	// ErrInvalidKey indicates a key that is not a compressed public key.
	ErrInvalidKey

	// numErrorCodes is the maximum error code number used in tests.  This
	// entry MUST be the last entry in the enum.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidDescriptor: "ErrInvalidDescriptor",
	ErrInvalidChecksum:   "ErrInvalidChecksum",
	ErrInvalidKey:        "ErrInvalidKey",
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

// Error identifies a descriptor related error.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the ErrorCode of the error.
func (e Error) Unwrap() error {
	return e.ErrorCode
}

func descriptorError(c ErrorCode, format string, args ...interface{}) Error {
	return Error{ErrorCode: c, Description: fmt.Sprintf(format, args...)}
}
