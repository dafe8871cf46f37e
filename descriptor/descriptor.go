// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package descriptor implements the pkh(), wpkh(), wsh() and sh(wsh())
// output descriptors, with the witness scripts written in miniscript.
package descriptor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/elementsutil/address"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/primitives"
	"github.com/btcsuite/elementsutil/txscript"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
)

// Type is the kind of output a descriptor describes.
type Type uint8

const (
	Pkh Type = iota
	Wpkh
	Wsh
	ShWsh
)

var typeStrings = []string{
	Pkh:   "pkh",
	Wpkh:  "wpkh",
	Wsh:   "wsh",
	ShWsh: "sh(wsh)",
}

// String returns the descriptor function of the type.
func (t Type) String() string {
	if int(t) >= len(typeStrings) {
		return "Invalid"
	}
	return typeStrings[t]
}

// KeyLookup resolves a key or hash name of a descriptor.  It returns nil, nil
// for names that are not variables, which are then decoded as hex.
type KeyLookup func(name string) ([]byte, error)

// Descriptor is a parsed output descriptor.  Key is set for pkh and wpkh,
// Miniscript for wsh and sh(wsh).
type Descriptor struct {
	Type       Type
	Key        []byte
	Miniscript *miniscript.AST

	keyName string
}

// Parse parses a descriptor whose keys and hashes are written in hex.  A
// trailing "#checksum" is verified when present.
func Parse(desc string) (*Descriptor, error) {
	return ParseWithKeys(desc, nil)
}

// ParseWithKeys parses a descriptor, resolving key and hash names through
// lookup.
func ParseWithKeys(desc string, lookup KeyLookup) (*Descriptor, error) {
	if lookup == nil {
		lookup = func(string) ([]byte, error) { return nil, nil }
	}

	body, err := splitChecksum(strings.TrimSpace(desc))
	if err != nil {
		return nil, err
	}

	var d *Descriptor
	switch {
	case unwrap(&body, "sh(wsh(", "))"):
		d, err = parseWsh(body, lookup)
		if d != nil {
			d.Type = ShWsh
		}
	case unwrap(&body, "wsh(", ")"):
		d, err = parseWsh(body, lookup)
	case unwrap(&body, "wpkh(", ")"):
		d, err = parseKey(Wpkh, body, lookup)
	case unwrap(&body, "pkh(", ")"):
		d, err = parseKey(Pkh, body, lookup)
	default:
		return nil, descriptorError(ErrInvalidDescriptor, "unsupported "+
			"descriptor %q", desc)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// unwrap strips prefix and suffix from s when both are present.
func unwrap(s *string, prefix, suffix string) bool {
	if !strings.HasPrefix(*s, prefix) || !strings.HasSuffix(*s, suffix) ||
		len(*s) < len(prefix)+len(suffix) {

		return false
	}
	*s = (*s)[len(prefix) : len(*s)-len(suffix)]
	return true
}

func resolveKey(name string, lookup KeyLookup) ([]byte, error) {
	key, err := lookup(name)
	if err != nil {
		return nil, descriptorError(ErrInvalidKey, "key %s: %v", name, err)
	}
	if key == nil {
		key, err = hex.DecodeString(name)
		if err != nil {
			return nil, descriptorError(ErrInvalidKey, "key %s is not "+
				"hex: %v", name, err)
		}
	}
	if _, err := primitives.Default.VerifyKeyBytes(key); err != nil {
		return nil, descriptorError(ErrInvalidKey, "key %s: %v", name, err)
	}
	return key, nil
}

func parseKey(typ Type, name string, lookup KeyLookup) (*Descriptor, error) {
	if name == "" || strings.ContainsAny(name, "(),") {
		return nil, descriptorError(ErrInvalidDescriptor, "%s expects a "+
			"single key, got %q", typ, name)
	}
	key, err := resolveKey(name, lookup)
	if err != nil {
		return nil, err
	}
	return &Descriptor{Type: typ, Key: key, keyName: name}, nil
}

func parseWsh(ms string, lookup KeyLookup) (*Descriptor, error) {
	ast, err := miniscript.Parse(ms)
	if err != nil {
		return nil, descriptorError(ErrInvalidDescriptor, "miniscript: %v",
			err)
	}
	if err := ast.ApplyVars(lookup); err != nil {
		return nil, descriptorError(ErrInvalidKey, "miniscript: %v", err)
	}
	if err := verifyKeys(ast); err != nil {
		return nil, err
	}
	if err := ast.IsSane(); err != nil {
		return nil, descriptorError(ErrInvalidDescriptor, "miniscript %s "+
			"is not sane: %v", ast, err)
	}
	return &Descriptor{Type: Wsh, Miniscript: ast}, nil
}

// verifyKeys checks that every full key of a fragment tree is a valid
// compressed public key.
func verifyKeys(ast *miniscript.AST) error {
	for _, key := range ast.Keys() {
		if len(key) != btcec.PubKeyBytesLenCompressed {
			continue
		}
		if _, err := primitives.Default.VerifyKeyBytes(key); err != nil {
			return descriptorError(ErrInvalidKey, "%s: %v",
				ast.Fragment(), err)
		}
	}
	for _, arg := range ast.Args() {
		if err := verifyKeys(arg); err != nil {
			return err
		}
	}
	return nil
}

// body returns the descriptor text without checksum.
func (d *Descriptor) body() string {
	switch d.Type {
	case Pkh, Wpkh:
		name := d.keyName
		if name == "" {
			name = hex.EncodeToString(d.Key)
		}
		return fmt.Sprintf("%s(%s)", d.Type, name)
	case ShWsh:
		return fmt.Sprintf("sh(wsh(%s))", d.Miniscript)
	}
	return fmt.Sprintf("wsh(%s)", d.Miniscript)
}

// String returns the descriptor with its checksum.
func (d *Descriptor) String() string {
	body := d.body()
	sum, err := Checksum(body)
	if err != nil {
		return body
	}
	return body + "#" + sum
}

// WitnessScript returns the miniscript script of a wsh or sh(wsh)
// descriptor, or nil for key descriptors.
func (d *Descriptor) WitnessScript() ([]byte, error) {
	if d.Miniscript == nil {
		return nil, nil
	}
	return d.Miniscript.Script()
}

// RedeemScript returns the P2SH redeem script of an sh(wsh) descriptor, or nil
// for the other types.
func (d *Descriptor) RedeemScript() ([]byte, error) {
	if d.Type != ShWsh {
		return nil, nil
	}
	script, err := d.WitnessScript()
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(script)
	return txscript.PayToWitnessScript(0, hash[:])
}

// PkScript returns the output script of the descriptor.
func (d *Descriptor) PkScript() ([]byte, error) {
	switch d.Type {
	case Pkh:
		return txscript.PayToPubKeyHashScript(btcutil.Hash160(d.Key))
	case Wpkh:
		return txscript.PayToWitnessScript(0, btcutil.Hash160(d.Key))
	case ShWsh:
		redeem, err := d.RedeemScript()
		if err != nil {
			return nil, err
		}
		return txscript.PayToScriptHashScript(btcutil.Hash160(redeem))
	}

	script, err := d.WitnessScript()
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(script)
	return txscript.PayToWitnessScript(0, hash[:])
}

// Address returns the address of the descriptor output on net.  A non-nil
// blinder makes it confidential.
func (d *Descriptor) Address(net *chaincfg.Params,
	blinder *btcec.PublicKey) (*address.Address, error) {

	pkScript, err := d.PkScript()
	if err != nil {
		return nil, err
	}
	addr, err := address.FromPkScript(pkScript, net)
	if err != nil {
		return nil, err
	}
	if blinder != nil {
		addr = addr.Confidential(blinder)
	}
	return addr, nil
}
