// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/primitives"
	"github.com/btcsuite/elementsutil/wire"
)

// Names of the confidential field encodings.
const (
	TypeNull         = "null"
	TypeExplicit     = "explicit"
	TypeConfidential = "confidential"
)

// confidentialType parses the type of a confidential record.
func confidentialType(field, name string) (wire.ConfidentialType, error) {
	switch name {
	case "":
		return 0, missingField(join(field, "type"))
	case TypeNull:
		return wire.ConfidentialNull, nil
	case TypeExplicit:
		return wire.ConfidentialExplicit, nil
	case TypeConfidential:
		return wire.ConfidentialCommitment, nil
	}
	return 0, typeMismatch(join(field, "type"), "unknown type %q, want "+
		"%s, %s or %s", name, TypeNull, TypeExplicit, TypeConfidential)
}

// ConfidentialValueInfo models a confidential amount.
type ConfidentialValueInfo struct {
	Type       string   `json:"type" yaml:"type"`
	Value      *uint64  `json:"value,omitempty" yaml:"value,omitempty"`
	Commitment HexBytes `json:"commitment,omitempty" yaml:"commitment,omitempty"`
}

// NewConfidentialValueInfo returns the record of a value.
func NewConfidentialValueInfo(v *wire.ConfidentialValue) *ConfidentialValueInfo {
	info := &ConfidentialValueInfo{Type: v.Type.String()}
	switch v.Type {
	case wire.ConfidentialExplicit:
		value := v.Value
		info.Value = &value
	case wire.ConfidentialCommitment:
		info.Commitment = append(HexBytes(nil), v.Commitment[:]...)
	}
	return info
}

// ToValue converts the record to a wire value.
func (info *ConfidentialValueInfo) ToValue() (wire.ConfidentialValue, error) {
	return info.toValue("")
}

func (info *ConfidentialValueInfo) toValue(field string) (wire.ConfidentialValue, error) {
	typ, err := confidentialType(field, info.Type)
	if err != nil {
		return wire.ConfidentialValue{}, err
	}

	switch typ {
	case wire.ConfidentialExplicit:
		if info.Value == nil {
			return wire.ConfidentialValue{}, missingField(
				join(field, "value"))
		}
		if info.Commitment != nil {
			return wire.ConfidentialValue{}, typeMismatch(
				join(field, "commitment"), "explicit value can not "+
					"carry a commitment")
		}
		return wire.NewExplicitValue(*info.Value), nil

	case wire.ConfidentialCommitment:
		if info.Commitment == nil {
			return wire.ConfidentialValue{}, missingField(
				join(field, "commitment"))
		}
		if info.Value != nil {
			return wire.ConfidentialValue{}, typeMismatch(
				join(field, "value"), "confidential value can not "+
					"carry an explicit amount")
		}
		v, err := wire.NewValueCommitment(info.Commitment)
		if err != nil {
			return v, typeMismatch(join(field, "commitment"), "%v", err)
		}
		return v, nil
	}

	if info.Value != nil || info.Commitment != nil {
		return wire.ConfidentialValue{}, typeMismatch(field, "null value "+
			"can not carry an amount or commitment")
	}
	return wire.ConfidentialValue{Type: wire.ConfidentialNull}, nil
}

// ConfidentialAssetInfo models a confidential asset.  Label names well-known
// explicit assets of the network.
type ConfidentialAssetInfo struct {
	Type       string   `json:"type" yaml:"type"`
	Asset      string   `json:"asset,omitempty" yaml:"asset,omitempty"`
	Commitment HexBytes `json:"commitment,omitempty" yaml:"commitment,omitempty"`
	Label      string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// NewConfidentialAssetInfo returns the record of an asset.  The label is
// looked up in net when it is not nil.
func NewConfidentialAssetInfo(a *wire.ConfidentialAsset,
	net *chaincfg.Params) *ConfidentialAssetInfo {

	info := &ConfidentialAssetInfo{Type: a.Type.String()}
	switch a.Type {
	case wire.ConfidentialExplicit:
		info.Asset = a.ID.String()
		if net != nil {
			info.Label = net.AssetLabel(a.ID)
		}
	case wire.ConfidentialCommitment:
		info.Commitment = append(HexBytes(nil), a.Commitment[:]...)
	}
	return info
}

// ToAsset converts the record to a wire asset.  The label is ignored.
func (info *ConfidentialAssetInfo) ToAsset() (wire.ConfidentialAsset, error) {
	return info.toAsset("")
}

func (info *ConfidentialAssetInfo) toAsset(field string) (wire.ConfidentialAsset, error) {
	typ, err := confidentialType(field, info.Type)
	if err != nil {
		return wire.ConfidentialAsset{}, err
	}

	switch typ {
	case wire.ConfidentialExplicit:
		if info.Asset == "" {
			return wire.ConfidentialAsset{}, missingField(
				join(field, "asset"))
		}
		if info.Commitment != nil {
			return wire.ConfidentialAsset{}, typeMismatch(
				join(field, "commitment"), "explicit asset can not "+
					"carry a commitment")
		}
		id, err := parseHash(join(field, "asset"), info.Asset)
		if err != nil {
			return wire.ConfidentialAsset{}, err
		}
		return wire.NewExplicitAsset(id), nil

	case wire.ConfidentialCommitment:
		if info.Commitment == nil {
			return wire.ConfidentialAsset{}, missingField(
				join(field, "commitment"))
		}
		if info.Asset != "" {
			return wire.ConfidentialAsset{}, typeMismatch(
				join(field, "asset"), "confidential asset can not "+
					"carry an explicit asset id")
		}
		a, err := wire.NewAssetCommitment(info.Commitment)
		if err != nil {
			return a, typeMismatch(join(field, "commitment"), "%v", err)
		}
		return a, nil
	}

	if info.Asset != "" || info.Commitment != nil {
		return wire.ConfidentialAsset{}, typeMismatch(field, "null asset "+
			"can not carry an asset id or commitment")
	}
	return wire.ConfidentialAsset{Type: wire.ConfidentialNull}, nil
}

// ConfidentialNonceInfo models the nonce of an output.
type ConfidentialNonceInfo struct {
	Type       string   `json:"type" yaml:"type"`
	Nonce      string   `json:"nonce,omitempty" yaml:"nonce,omitempty"`
	Commitment HexBytes `json:"commitment,omitempty" yaml:"commitment,omitempty"`
}

// NewConfidentialNonceInfo returns the record of a nonce.
func NewConfidentialNonceInfo(n *wire.ConfidentialNonce) *ConfidentialNonceInfo {
	info := &ConfidentialNonceInfo{Type: n.Type.String()}
	switch n.Type {
	case wire.ConfidentialExplicit:
		info.Nonce = chainhash.Hash(n.Explicit).String()
	case wire.ConfidentialCommitment:
		info.Commitment = append(HexBytes(nil), n.Commitment[:]...)
	}
	return info
}

// ToNonce converts the record to a wire nonce.  Commitments must be valid
// curve points.
func (info *ConfidentialNonceInfo) ToNonce() (wire.ConfidentialNonce, error) {
	return info.toNonce("")
}

func (info *ConfidentialNonceInfo) toNonce(field string) (wire.ConfidentialNonce, error) {
	typ, err := confidentialType(field, info.Type)
	if err != nil {
		return wire.ConfidentialNonce{}, err
	}

	switch typ {
	case wire.ConfidentialExplicit:
		if info.Nonce == "" {
			return wire.ConfidentialNonce{}, missingField(
				join(field, "nonce"))
		}
		h, err := parseHash(join(field, "nonce"), info.Nonce)
		if err != nil {
			return wire.ConfidentialNonce{}, err
		}
		return wire.ConfidentialNonce{
			Type:     wire.ConfidentialExplicit,
			Explicit: h,
		}, nil

	case wire.ConfidentialCommitment:
		if info.Commitment == nil {
			return wire.ConfidentialNonce{}, missingField(
				join(field, "commitment"))
		}
		n, err := wire.NewNonceCommitment(info.Commitment)
		if err != nil {
			return n, typeMismatch(join(field, "commitment"), "%v", err)
		}
		if err := primitives.VerifyNonceCommitment(info.Commitment); err != nil {
			return n, typeMismatch(join(field, "commitment"), "%v", err)
		}
		return n, nil
	}

	if info.Nonce != "" || info.Commitment != nil {
		return wire.ConfidentialNonce{}, typeMismatch(field, "null nonce "+
			"can not carry a nonce or commitment")
	}
	return wire.ConfidentialNonce{Type: wire.ConfidentialNull}, nil
}
