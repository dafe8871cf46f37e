// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package eljson defines the structured records of Elements transactions,
// scripts, addresses and policies, and converts them to and from the wire
// types.  Records carry json and yaml tags and are modeled on the btcjson
// result types.
package eljson

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is implemented by every record type of the package.
type Record interface {
	isRecord()
}

func (*TransactionInfo) isRecord()       {}
func (*OutputInfo) isRecord()            {}
func (*ScriptInfo) isRecord()            {}
func (*ConfidentialValueInfo) isRecord() {}
func (*ConfidentialAssetInfo) isRecord() {}
func (*ConfidentialNonceInfo) isRecord() {}
func (*AddressInfo) isRecord()           {}
func (*AddressesInfo) isRecord()         {}
func (*MiniscriptInfo) isRecord()        {}
func (*PolicyInfo) isRecord()            {}
func (*DescriptorInfo) isRecord()        {}
func (*PsetInfo) isRecord()              {}

// Unmarshal decodes a JSON or YAML document into a record.  Documents
// starting with '{' are read as JSON, anything else as YAML.  Decoding
// errors are reported as ErrTypeMismatch.
func Unmarshal(data []byte, r Record) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return unmarshalJSON(trimmed, r)
	}
	return unmarshalYAML(trimmed, r)
}

func unmarshalJSON(data []byte, r Record) error {
	err := json.Unmarshal(data, r)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeMismatch(typeErr.Field, "cannot use %s as %s",
			typeErr.Value, typeErr.Type)
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr
	}
	return typeMismatch("", "invalid JSON: %v", err)
}

func unmarshalYAML(data []byte, r Record) error {
	err := yaml.Unmarshal(data, r)
	if err == nil {
		return nil
	}

	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr
	}
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return typeMismatch("", "%s", strings.Join(typeErr.Errors, "; "))
	}
	return typeMismatch("", "invalid YAML: %v", err)
}

// MarshalJSON encodes a record as indented JSON.
func MarshalJSON(r Record) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// MarshalYAML encodes a record as YAML.
func MarshalYAML(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
