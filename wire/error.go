// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
)

// ErrorCode identifies a kind of decoding error.
type ErrorCode int

// These constants are used to identify a specific DecodeError.
const (
	// ErrTruncatedInput indicates the input ended before a field could be
	// read completely.
	ErrTruncatedInput ErrorCode = iota

	// ErrTrailingBytes indicates that bytes remain after a structure that
	// was expected to consume the whole buffer.
	ErrTrailingBytes

	// ErrMalformedField indicates that a field was read completely but its
	// contents are not valid, e.g. an unknown prefix byte or a
	// non-canonical variable length integer.
	ErrMalformedField
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrTruncatedInput: "ErrTruncatedInput",
	ErrTrailingBytes:  "ErrTrailingBytes",
	ErrMalformedField: "ErrMalformedField",
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

// DecodeError describes a failure to decode a wire structure.  Offset is the
// position of the first byte of the offending field, relative to the start of
// the decoded buffer.
type DecodeError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Offset      int       // Byte offset of the offending field
	Field       string    // Name of the offending field
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d: %s", e.ErrorCode, e.Field,
		e.Offset, e.Description)
}

// Unwrap returns the error code so that errors.Is can match on it.
func (e *DecodeError) Unwrap() error {
	return e.ErrorCode
}

// decodeError creates a DecodeError given a set of arguments.
func decodeError(c ErrorCode, offset int, field, desc string) *DecodeError {
	return &DecodeError{
		ErrorCode:   c,
		Offset:      offset,
		Field:       field,
		Description: desc,
	}
}
