// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package codec converts between the binary encodings of Elements data and
// their eljson records, and exposes the script analyzer and the policy
// compiler in record form.
//
// Decoding is exact: every byte of the input must be consumed, and
// Encode(Decode(b)) == b for every well-formed b.
package codec

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/eljson"
	"github.com/btcsuite/elementsutil/policy"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
	"github.com/btcsuite/elementsutil/wire"
)

// Kind selects the binary structure Decode expects.
type Kind uint8

const (
	// KindTransaction is a full transaction, witness included.
	KindTransaction Kind = iota

	// KindOutput is a single output without its proofs, as committed to
	// by signatures and used for witness UTXOs.
	KindOutput

	// KindScript is any script.
	KindScript

	KindConfidentialValue
	KindConfidentialAsset
	KindConfidentialNonce

	numKinds
)

var kindStrings = [numKinds]string{
	KindTransaction:       "transaction",
	KindOutput:            "output",
	KindScript:            "script",
	KindConfidentialValue: "value",
	KindConfidentialAsset: "asset",
	KindConfidentialNonce: "nonce",
}

// String returns the name of the kind, e.g. "transaction".
func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("Unknown Kind (%d)", uint8(k))
	}
	return kindStrings[k]
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, error) {
	for k, s := range kindStrings {
		if s == name {
			return Kind(k), nil
		}
	}
	return 0, codecError(ErrUnknownKind, "unknown kind %q", name)
}

// Decode decodes b as a structure of the given kind into its record.  Asset
// labels and addresses are resolved on net when it is not nil.
func Decode(b []byte, kind Kind, net *chaincfg.Params) (eljson.Record, error) {
	switch kind {
	case KindTransaction:
		var tx wire.MsgTx
		if err := tx.FromBytes(b); err != nil {
			return nil, fmt.Errorf("decode %v: %w", kind, err)
		}
		log.Debugf("Decoded transaction %v", newLogClosure(func() string {
			return tx.TxHash().String()
		}))
		return eljson.NewTransactionInfo(&tx, net), nil

	case KindOutput:
		var txOut wire.TxOut
		if err := txOut.FromBytes(b); err != nil {
			return nil, fmt.Errorf("decode %v: %w", kind, err)
		}
		return eljson.NewOutputInfo(&txOut, net), nil

	case KindScript:
		return eljson.NewScriptInfo(b, net), nil

	case KindConfidentialValue:
		var v wire.ConfidentialValue
		if err := v.FromBytes(b); err != nil {
			return nil, fmt.Errorf("decode %v: %w", kind, err)
		}
		return eljson.NewConfidentialValueInfo(&v), nil

	case KindConfidentialAsset:
		var a wire.ConfidentialAsset
		if err := a.FromBytes(b); err != nil {
			return nil, fmt.Errorf("decode %v: %w", kind, err)
		}
		return eljson.NewConfidentialAssetInfo(&a, net), nil

	case KindConfidentialNonce:
		var n wire.ConfidentialNonce
		if err := n.FromBytes(b); err != nil {
			return nil, fmt.Errorf("decode %v: %w", kind, err)
		}
		return eljson.NewConfidentialNonceInfo(&n), nil
	}
	return nil, codecError(ErrUnknownKind, "unknown kind %v", kind)
}

// serialize runs a wire encoder into a fresh buffer.
func serialize(encode func(*bytes.Buffer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode returns the binary form of a record.  Addresses in the record must
// belong to net, which defaults to Elements regtest.  Records describing
// addresses, descriptors or policies have no binary form and fail with
// ErrUnsupportedRecord.
func Encode(r eljson.Record, net *chaincfg.Params) ([]byte, error) {
	switch r := r.(type) {
	case *eljson.TransactionInfo:
		tx, err := r.ToMsgTx(net)
		if err != nil {
			return nil, fmt.Errorf("encode transaction: %w", err)
		}
		return tx.Bytes()

	case *eljson.OutputInfo:
		txOut, err := r.ToTxOut(net)
		if err != nil {
			return nil, fmt.Errorf("encode output: %w", err)
		}
		return serialize(func(buf *bytes.Buffer) error {
			return txOut.Serialize(buf)
		})

	case *eljson.ScriptInfo:
		script, err := r.ToScript()
		if err != nil {
			return nil, fmt.Errorf("encode script: %w", err)
		}
		return script, nil

	case *eljson.ConfidentialValueInfo:
		v, err := r.ToValue()
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		return serialize(func(buf *bytes.Buffer) error {
			return v.Serialize(buf)
		})

	case *eljson.ConfidentialAssetInfo:
		a, err := r.ToAsset()
		if err != nil {
			return nil, fmt.Errorf("encode asset: %w", err)
		}
		return serialize(func(buf *bytes.Buffer) error {
			return a.Serialize(buf)
		})

	case *eljson.ConfidentialNonceInfo:
		n, err := r.ToNonce()
		if err != nil {
			return nil, fmt.Errorf("encode nonce: %w", err)
		}
		return serialize(func(buf *bytes.Buffer) error {
			return n.Serialize(buf)
		})
	}
	return nil, codecError(ErrUnsupportedRecord, "%T has no binary form", r)
}

// Analyze recovers the fragment tree of a script executed in ctx, which
// defaults to miniscript.SegwitV0, and describes it.
func Analyze(script []byte, ctx *miniscript.Context) (*eljson.MiniscriptInfo, error) {
	if ctx == nil {
		ctx = miniscript.SegwitV0
	}
	ast, err := miniscript.Analyze(script, ctx)
	if err != nil {
		return nil, err
	}
	return eljson.NewMiniscriptInfo(ast, ctx)
}

// Compile parses and compiles a policy whose keys are hex encoded.  Addresses
// of the compiled script are reported on net when it is not nil.
func Compile(policyText string, opts *policy.CompileOptions,
	net *chaincfg.Params) (*eljson.PolicyInfo, error) {

	return CompileWithKeys(policyText, nil, opts, net)
}

// CompileWithKeys is Compile with key names resolved through lookup.  A nil
// lookup reads keys as hex.
func CompileWithKeys(policyText string, lookup policy.KeyLookup,
	opts *policy.CompileOptions, net *chaincfg.Params) (*eljson.PolicyInfo, error) {

	var (
		p   *policy.Policy
		err error
	)
	if lookup == nil {
		p, err = policy.Parse(policyText)
	} else {
		p, err = policy.ParseWithKeys(policyText, lookup)
	}
	if err != nil {
		return nil, err
	}

	result, err := policy.Compile(p, opts)
	if err != nil {
		return nil, err
	}

	var ctx *miniscript.Context
	if opts != nil {
		ctx = opts.Context
	}
	log.Debugf("Compiled %v to %v", p, result.Fragment)
	return eljson.NewPolicyInfo(p, result, ctx, net)
}
