// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"fmt"
)

// ErrorCode identifies a kind of record validation error.
type ErrorCode int

// These constants are used to identify a specific FieldError.
const (
	// ErrMissingField indicates that a required field of a record is
	// absent.
	ErrMissingField ErrorCode = iota

	// ErrTypeMismatch indicates that a field is present but has the wrong
	// shape: bad hex, a wrong length, an unknown enum value or a value
	// conflicting with another field.
	ErrTypeMismatch

	// numErrorCodes is the maximum error code number used in tests.  This
	// entry MUST be the last entry in the enum.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrMissingField: "ErrMissingField",
	ErrTypeMismatch: "ErrTypeMismatch",
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

// FieldError describes a record field that failed validation.  Field is the
// dotted path of the field, e.g. "inputs[0].script_sig.hex".
type FieldError struct {
	ErrorCode   ErrorCode
	Field       string
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.Description)
	}
	return fmt.Sprintf("%s: field %q: %s", e.ErrorCode, e.Field,
		e.Description)
}

// Unwrap returns the error code so that errors.Is can match on it.
func (e *FieldError) Unwrap() error {
	return e.ErrorCode
}

// missingField returns the error for an absent required field.
func missingField(field string) *FieldError {
	return &FieldError{
		ErrorCode:   ErrMissingField,
		Field:       field,
		Description: fmt.Sprintf("field %q is required", field),
	}
}

// typeMismatch returns the error for a field of the wrong shape.
func typeMismatch(field, format string, args ...interface{}) *FieldError {
	return &FieldError{
		ErrorCode:   ErrTypeMismatch,
		Field:       field,
		Description: fmt.Sprintf(format, args...),
	}
}

// join returns the path of a child field.
func join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// index returns the path of an element of a list field.
func index(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
