// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package policy

import (
	"fmt"
)

// ErrorKind identifies a kind of policy error.
type ErrorKind int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidPolicy indicates policy text that does not parse, or a
	// leaf with an invalid argument.
	ErrInvalidPolicy ErrorKind = iota

	// ErrUnsatisfiable indicates a policy that can never be satisfied, or
	// one that can only be compiled into an unsatisfiable script, e.g. a
	// threshold larger than its number of sub-policies or a key used
	// twice.
	ErrUnsatisfiable

	// ErrPolicyTooComplex indicates that every compilation of a policy
	// exceeds the script size, op count or stack item limits of the
	// context.
	ErrPolicyTooComplex

	// ErrImpossibleNonMalleable indicates that no compilation of a policy
	// has a non-malleable satisfaction.
	ErrImpossibleNonMalleable

	// numErrorKinds is the maximum error kind number used in tests.  This
	// entry MUST be the last entry in the enum.
	numErrorKinds
)

// Map of ErrorKind values back to their constant names for pretty printing.
var errorKindStrings = map[ErrorKind]string{
	ErrInvalidPolicy:          "ErrInvalidPolicy",
	ErrUnsatisfiable:          "ErrUnsatisfiable",
	ErrPolicyTooComplex:       "ErrPolicyTooComplex",
	ErrImpossibleNonMalleable: "ErrImpossibleNonMalleable",
}

// String returns the ErrorKind as a human-readable name.
func (e ErrorKind) String() string {
	if s := errorKindStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorKind (%d)", int(e))
}

// Error satisfies the error interface so an ErrorKind can be used as an
// errors.Is target.
func (e ErrorKind) Error() string {
	return e.String()
}

// Error describes a failure to parse or compile a policy.  SubPolicy is the
// text of the sub-policy the failure was detected at, when there is one.
type Error struct {
	Kind        ErrorKind
	SubPolicy   string
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e *Error) Error() string {
	if e.SubPolicy == "" {
		return e.Description
	}
	return fmt.Sprintf("%s: %s", e.Description, e.SubPolicy)
}

// Unwrap returns the error kind so that errors.Is can match on it.
func (e *Error) Unwrap() error {
	return e.Kind
}

// policyError creates an Error given a set of arguments.
func policyError(kind ErrorKind, sub *Policy, desc string) *Error {
	err := &Error{Kind: kind, Description: desc}
	if sub != nil {
		err.SubPolicy = sub.String()
	}
	return err
}

// parseError creates an ErrInvalidPolicy error.
func parseError(format string, args ...interface{}) *Error {
	return &Error{
		Kind:        ErrInvalidPolicy,
		Description: fmt.Sprintf(format, args...),
	}
}
