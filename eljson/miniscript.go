// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eljson

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/elementsutil/address"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/descriptor"
	"github.com/btcsuite/elementsutil/policy"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
)

// MiniscriptInfo describes a fragment tree and the script it encodes.  The
// size fields are omitted when no satisfaction or dissatisfaction exists.
type MiniscriptInfo struct {
	Miniscript             string     `json:"miniscript" yaml:"miniscript"`
	Context                string     `json:"context" yaml:"context"`
	Type                   string     `json:"type" yaml:"type"`
	Script                 *ScriptHex `json:"script" yaml:"script"`
	ScriptSize             int        `json:"script_size" yaml:"script_size"`
	MaxOpCount             int        `json:"max_op_count" yaml:"max_op_count"`
	MaxSatisfactionSize    *int       `json:"max_satisfaction_size,omitempty" yaml:"max_satisfaction_size,omitempty"`
	MaxDissatisfactionSize *int       `json:"max_dissatisfaction_size,omitempty" yaml:"max_dissatisfaction_size,omitempty"`
	MaxStackItems          *int       `json:"max_stack_items,omitempty" yaml:"max_stack_items,omitempty"`
	NonMalleable           bool       `json:"non_malleable" yaml:"non_malleable"`
	NeedsSignature         bool       `json:"needs_signature" yaml:"needs_signature"`
	Sane                   bool       `json:"sane" yaml:"sane"`
	Insane                 string     `json:"insane_reason,omitempty" yaml:"insane_reason,omitempty"`
	Keys                   []HexBytes `json:"keys,omitempty" yaml:"keys,omitempty"`
	Policy                 string     `json:"policy,omitempty" yaml:"policy,omitempty"`
	Tree                   string     `json:"tree,omitempty" yaml:"tree,omitempty"`
}

// ScriptHex is a script with its disassembly.
type ScriptHex struct {
	Hex HexBytes `json:"hex" yaml:"hex"`
	Asm string   `json:"asm" yaml:"asm"`
}

func newScriptHex(script []byte) *ScriptHex {
	return &ScriptHex{Hex: append(HexBytes(nil), script...), Asm: disasm(script)}
}

func optionalSize(size int, ok bool) *int {
	if !ok {
		return nil
	}
	return &size
}

// NewMiniscriptInfo returns the description of a fragment tree executed in
// ctx.  A nil ctx selects miniscript.SegwitV0.
func NewMiniscriptInfo(ast *miniscript.AST,
	ctx *miniscript.Context) (*MiniscriptInfo, error) {

	if ctx == nil {
		ctx = miniscript.SegwitV0
	}
	script, err := ast.Script()
	if err != nil {
		return nil, err
	}

	info := &MiniscriptInfo{
		Miniscript:     ast.String(),
		Context:        ctx.Name,
		Type:           ast.Type(),
		Script:         newScriptHex(script),
		ScriptSize:     len(script),
		MaxOpCount:     ast.MaxOpCount(),
		NonMalleable:   ast.IsNonMalleable(),
		NeedsSignature: ast.NeedsSignature(),
		Keys:           hexList(ast.AllKeys()),
		Tree:           ast.DrawTree(),
	}
	info.MaxSatisfactionSize = optionalSize(ast.MaxSatisfactionSize())
	info.MaxDissatisfactionSize = optionalSize(ast.MaxDissatisfactionSize())
	info.MaxStackItems = optionalSize(ast.MaxStackItems())

	if err := ast.IsValidTopLevelIn(ctx); err != nil {
		info.Insane = err.Error()
	} else if err := ast.IsSane(); err != nil {
		info.Insane = err.Error()
	} else {
		info.Sane = true
	}

	// Lifting only fails for trees that are not valid at the top level,
	// which are still described.
	if semantic, err := miniscript.Lift(ast); err == nil {
		info.Policy = semantic.String()
	} else {
		log.Debugf("Not lifting %v: %v", ast, err)
	}
	return info, nil
}

// PolicyInfo describes the compilation of a policy.
type PolicyInfo struct {
	Policy           string          `json:"policy" yaml:"policy"`
	Semantic         string          `json:"semantic" yaml:"semantic"`
	Miniscript       *MiniscriptInfo `json:"miniscript" yaml:"miniscript"`
	SatisfactionCost int             `json:"satisfaction_cost" yaml:"satisfaction_cost"`
	ExpectedCost     float64         `json:"expected_cost" yaml:"expected_cost"`
	P2WSH            string          `json:"p2wsh,omitempty" yaml:"p2wsh,omitempty"`
	P2SHWSH          string          `json:"p2shwsh,omitempty" yaml:"p2shwsh,omitempty"`

	// Satisfaction is the witness satisfying the script when every key
	// signs, every preimage is known and every time lock has passed.
	Satisfaction []string `json:"satisfaction,omitempty" yaml:"satisfaction,omitempty"`
}

// NewPolicyInfo returns the description of a compiled policy.  Addresses are
// only set when net is not nil.
func NewPolicyInfo(p *policy.Policy, result *policy.CompilationResult,
	ctx *miniscript.Context, net *chaincfg.Params) (*PolicyInfo, error) {

	ms, err := NewMiniscriptInfo(result.Fragment, ctx)
	if err != nil {
		return nil, err
	}
	info := &PolicyInfo{
		Policy:           p.String(),
		Semantic:         p.Semantic().String(),
		Miniscript:       ms,
		SatisfactionCost: result.SatisfactionCost,
		ExpectedCost:     result.ExpectedCost,
		Satisfaction:     satisfactionPlan(result.Fragment),
	}
	if net != nil {
		set, err := address.ForScript(result.Script, nil, net)
		if err != nil {
			return nil, err
		}
		info.P2WSH = set.P2WSH.String()
		info.P2SHWSH = set.P2SHWSH.String()
	}
	return info, nil
}

// satisfactionPlan satisfies ast with placeholder signatures and preimages
// and returns the witness with the placeholders named, e.g. "<sig(02..)>".
// It returns nil when the tree has no non-malleable satisfaction.
func satisfactionPlan(ast *miniscript.AST) []string {
	labels := make(map[string]string)
	satisfier := &miniscript.Satisfier{
		CheckOlder: func(uint32) (bool, error) { return true, nil },
		CheckAfter: func(uint32) (bool, error) { return true, nil },
		Sign: func(key []byte) ([]byte, bool) {
			// Placeholders have the size of a DER signature with
			// its sighash byte.
			sig := make([]byte, 0, 73)
			for len(sig) < 73 {
				sig = append(sig, chainhash.HashB(
					append([]byte("sig"), key...))...)
			}
			sig = sig[:73]
			labels[string(sig)] = fmt.Sprintf("<sig(%x)>", key)
			return sig, true
		},
		Preimage: func(hashFunc string, hash []byte) ([]byte, bool) {
			preimage := chainhash.HashB(append([]byte(hashFunc), hash...))
			labels[string(preimage)] = fmt.Sprintf("<%s_preimage(%x)>",
				hashFunc, hash)
			return preimage, true
		},
	}

	witness, err := ast.Satisfy(satisfier)
	if err != nil {
		log.Debugf("No satisfaction of %v: %v", ast, err)
		return nil
	}
	plan := make([]string, len(witness))
	for i, item := range witness {
		switch label, ok := labels[string(item)]; {
		case ok:
			plan[i] = label
		case len(item) == 0:
			plan[i] = "<empty>"
		default:
			plan[i] = hex.EncodeToString(item)
		}
	}
	return plan
}

// DescriptorInfo describes the output of a descriptor.
type DescriptorInfo struct {
	Descriptor    string            `json:"descriptor" yaml:"descriptor"`
	Type          string            `json:"type" yaml:"type"`
	ScriptPubKey  *OutputScriptInfo `json:"script_pub_key" yaml:"script_pub_key"`
	WitnessScript *ScriptHex        `json:"witness_script,omitempty" yaml:"witness_script,omitempty"`
	RedeemScript  *ScriptHex        `json:"redeem_script,omitempty" yaml:"redeem_script,omitempty"`
	Address       string            `json:"address" yaml:"address"`
	Miniscript    *MiniscriptInfo   `json:"miniscript,omitempty" yaml:"miniscript,omitempty"`
}

// NewDescriptorInfo returns the description of a descriptor on net.  A
// non-nil blinder makes the address confidential.
func NewDescriptorInfo(d *descriptor.Descriptor, net *chaincfg.Params,
	blinder *btcec.PublicKey) (*DescriptorInfo, error) {

	pkScript, err := d.PkScript()
	if err != nil {
		return nil, err
	}
	addr, err := d.Address(net, blinder)
	if err != nil {
		return nil, err
	}

	info := &DescriptorInfo{
		Descriptor:   d.String(),
		Type:         d.Type.String(),
		ScriptPubKey: NewOutputScriptInfo(pkScript, net),
		Address:      addr.String(),
	}
	if d.Miniscript != nil {
		witnessScript, err := d.WitnessScript()
		if err != nil {
			return nil, err
		}
		info.WitnessScript = newScriptHex(witnessScript)
		info.Miniscript, err = NewMiniscriptInfo(d.Miniscript,
			miniscript.SegwitV0)
		if err != nil {
			return nil, err
		}
	}
	redeemScript, err := d.RedeemScript()
	if err != nil {
		return nil, err
	}
	if redeemScript != nil {
		info.RedeemScript = newScriptHex(redeemScript)
	}
	return info, nil
}
