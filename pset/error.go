// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"fmt"
)

// ErrorCode identifies a kind of PSET error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInvalidMagic indicates the data does not start with the PSET
	// magic bytes.
	ErrInvalidMagic ErrorCode = iota

	// ErrInvalidFormat indicates a map, key or value that can not be
	// parsed.
	ErrInvalidFormat

	// ErrDuplicateKey indicates a key that appears twice in one map.
	ErrDuplicateKey

	// ErrInvalidKeyData indicates key data that does not fit the key type,
	// such as a malformed public key.
	ErrInvalidKeyData

	// ErrMissingField indicates a field every PSET must carry is absent.
	ErrMissingField

	// ErrUnsupportedVersion indicates a PSET version other than 2.
	ErrUnsupportedVersion

	// ErrInvalidRawTxSigned indicates a transaction with signature scripts
	// or script witnesses was given to create a PSET.
	ErrInvalidRawTxSigned

	// ErrMergeConflict indicates two PSETs that do not describe the same
	// transaction.
	ErrMergeConflict

	// ErrIndexOutOfRange indicates an input or output index past the end
	// of the PSET.
	ErrIndexOutOfRange

	// ErrNotFinalizable indicates an input whose data is not enough to
	// build a final script.
	ErrNotFinalizable

	// ErrNotFinalized indicates extraction of a PSET with inputs that are
	// not final.
	ErrNotFinalized

	// ErrLockTimeConflict indicates inputs that require both a height and
	// a time lock.
	ErrLockTimeConflict

	// numErrorCodes is the maximum error code number used in tests.  This
	// entry MUST be the last entry in the enum.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidMagic:       "ErrInvalidMagic",
	ErrInvalidFormat:      "ErrInvalidFormat",
	ErrDuplicateKey:       "ErrDuplicateKey",
	ErrInvalidKeyData:     "ErrInvalidKeyData",
	ErrMissingField:       "ErrMissingField",
	ErrUnsupportedVersion: "ErrUnsupportedVersion",
	ErrInvalidRawTxSigned: "ErrInvalidRawTxSigned",
	ErrMergeConflict:      "ErrMergeConflict",
	ErrIndexOutOfRange:    "ErrIndexOutOfRange",
	ErrNotFinalizable:     "ErrNotFinalizable",
	ErrNotFinalized:       "ErrNotFinalized",
	ErrLockTimeConflict:   "ErrLockTimeConflict",
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

// Error identifies a PSET related error.
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

func psetError(c ErrorCode, format string, args ...interface{}) Error {
	return Error{ErrorCode: c, Description: fmt.Sprintf(format, args...)}
}
