// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package policy

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/elementsutil/primitives"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
)

// Kind is the kind of a policy node.
type Kind uint8

const (
	KindUnsatisfiable Kind = iota
	KindTrivial
	KindKey
	KindAfter
	KindOlder
	KindHash
	KindAnd
	KindOr
	KindThresh
)

// Policy is a node of a spending policy such as
// "or(9@pk(02..),and(pk(03..),older(144)))".  A policy is not modified once
// parsed.
type Policy struct {
	Kind Kind

	// Key is the 33 byte compressed public key of a Key node.
	Key []byte

	// HashKind and Hash describe the hash lock of a Hash node.
	HashKind primitives.HashKind
	Hash     []byte

	// Value is the lock time of After and Older nodes.
	Value uint64

	// K is the threshold of a Thresh node over Subs.  And and Or nodes
	// have exactly two Subs.
	K    int
	Subs []*Policy

	// Weights are the relative probabilities of the two branches of an Or
	// node being used to satisfy it.
	Weights []int
}

// String returns the policy text of the tree.  Or weights are only printed
// when they are not both 1.
func (p *Policy) String() string {
	switch p.Kind {
	case KindUnsatisfiable:
		return "UNSATISFIABLE"
	case KindTrivial:
		return "TRIVIAL"
	case KindKey:
		return fmt.Sprintf("pk(%x)", p.Key)
	case KindAfter:
		return fmt.Sprintf("after(%d)", p.Value)
	case KindOlder:
		return fmt.Sprintf("older(%d)", p.Value)
	case KindHash:
		return fmt.Sprintf("%s(%x)", p.HashKind, p.Hash)
	case KindAnd:
		return fmt.Sprintf("and(%s,%s)", p.Subs[0], p.Subs[1])
	case KindOr:
		w := p.weights()
		if w[0] == 1 && w[1] == 1 {
			return fmt.Sprintf("or(%s,%s)", p.Subs[0], p.Subs[1])
		}
		return fmt.Sprintf("or(%d@%s,%d@%s)", w[0], p.Subs[0], w[1],
			p.Subs[1])
	}

	subs := make([]string, len(p.Subs))
	for i, sub := range p.Subs {
		subs[i] = sub.String()
	}
	return fmt.Sprintf("thresh(%d,%s)", p.K, strings.Join(subs, ","))
}

// weights returns the branch weights of an Or node, defaulting to 1 each.
func (p *Policy) weights() [2]int {
	w := [2]int{1, 1}
	if len(p.Weights) == 2 {
		w[0], w[1] = p.Weights[0], p.Weights[1]
	}
	return w
}

// Keys returns the keys of the policy in the order they appear.
func (p *Policy) Keys() [][]byte {
	var keys [][]byte
	var walk func(*Policy)
	walk = func(n *Policy) {
		if n.Kind == KindKey {
			keys = append(keys, n.Key)
		}
		for _, sub := range n.Subs {
			walk(sub)
		}
	}
	walk(p)
	return keys
}

// Semantic returns the normalized semantic policy, the form Lift produces for
// a compiled script.  Weights are dropped.
func (p *Policy) Semantic() *miniscript.Semantic {
	return p.semantic().Normalize()
}

func (p *Policy) semantic() *miniscript.Semantic {
	switch p.Kind {
	case KindUnsatisfiable:
		return &miniscript.Semantic{Kind: miniscript.SemanticUnsatisfiable}
	case KindTrivial:
		return &miniscript.Semantic{Kind: miniscript.SemanticTrivial}
	case KindKey:
		return &miniscript.Semantic{Kind: miniscript.SemanticKey, Key: p.Key}
	case KindAfter:
		return &miniscript.Semantic{
			Kind:  miniscript.SemanticAfter,
			Value: p.Value,
		}
	case KindOlder:
		return &miniscript.Semantic{
			Kind:  miniscript.SemanticOlder,
			Value: p.Value,
		}
	case KindHash:
		return &miniscript.Semantic{
			Kind: semanticHashKinds[p.HashKind],
			Hash: p.Hash,
		}
	}

	subs := make([]*miniscript.Semantic, len(p.Subs))
	for i, sub := range p.Subs {
		subs[i] = sub.semantic()
	}
	switch p.Kind {
	case KindAnd:
		return miniscript.NewSemanticThresh(2, subs...)
	case KindOr:
		return miniscript.NewSemanticThresh(1, subs...)
	}
	return miniscript.NewSemanticThresh(p.K, subs...)
}

var semanticHashKinds = map[primitives.HashKind]miniscript.SemanticKind{
	primitives.SHA256:    miniscript.SemanticSha256,
	primitives.HASH256:   miniscript.SemanticHash256,
	primitives.RIPEMD160: miniscript.SemanticRipemd160,
	primitives.HASH160:   miniscript.SemanticHash160,
}

// KeyLookup resolves a key name used in a policy to its public key bytes.
type KeyLookup func(name string) ([]byte, error)

// Parse parses a policy whose keys are hex encoded compressed public keys.
func Parse(text string) (*Policy, error) {
	return ParseWithKeys(text, hex.DecodeString)
}

// ParseWithKeys parses a policy, resolving the argument of every pk() with
// lookup.  Resolved keys are verified with the default primitive adapter.
func ParseWithKeys(text string, lookup KeyLookup) (*Policy, error) {
	root, err := createTree(strings.Join(strings.Fields(text), ""))
	if err != nil {
		return nil, err
	}
	p := &parser{lookup: lookup, adapter: primitives.Default}
	return p.convert(root, false)
}

// parseNode is a node of the untyped expression tree of a policy.
type parseNode struct {
	weight     int
	identifier string
	args       []*parseNode
}

// splitTokens splits policy text into identifiers and the separators '(',
// ')' and ','.
func splitTokens(s string) []string {
	var tokens []string
	start := 0
	for i, c := range s {
		switch c {
		case '(', ')', ',':
			if i > start {
				tokens = append(tokens, s[start:i])
			}
			tokens = append(tokens, string(c))
			start = i + 1
		}
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

func createTree(text string) (*parseNode, error) {
	tokens := splitTokens(text)
	if len(tokens) == 0 {
		return nil, parseError("empty policy")
	}

	var stack []*parseNode
	for i, token := range tokens {
		var prev string
		if i > 0 {
			prev = tokens[i-1]
		}

		switch token {
		case "(":
			if i == 0 || prev == "(" || prev == ")" || prev == "," {
				return nil, parseError("the sequence %s%s is "+
					"invalid", prev, token)
			}

		case ",", ")":
			if i == 0 || prev == "(" || prev == "," {
				return nil, parseError("the sequence %s%s is "+
					"invalid", prev, token)
			}

			// The finished argument joins its parent, which stays
			// on the stack until its own closing separator.
			if len(stack) < 2 {
				return nil, parseError("unbalanced policy")
			}
			arg := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			parent.args = append(parent.args, arg)

		default:
			if prev == ")" {
				return nil, parseError("the sequence %s%s is "+
					"invalid", prev, token)
			}
			node, err := newParseNode(token)
			if err != nil {
				return nil, err
			}
			stack = append(stack, node)
		}
	}

	if len(stack) != 1 {
		return nil, parseError("unbalanced policy")
	}
	return stack[0], nil
}

// newParseNode splits an optional "w@" weight prefix from an identifier.
func newParseNode(token string) (*parseNode, error) {
	parts := strings.Split(token, "@")
	switch len(parts) {
	case 1:
		return &parseNode{identifier: token}, nil
	case 2:
		weight, err := strconv.ParseUint(parts[0], 10, 31)
		if err != nil || weight == 0 {
			return nil, parseError("invalid weight %q", parts[0])
		}
		if parts[1] == "" {
			return nil, parseError("no policy after weight %s@",
				parts[0])
		}
		return &parseNode{weight: int(weight), identifier: parts[1]},
			nil
	}
	return nil, parseError("invalid number of @ in token: %s", token)
}

type parser struct {
	lookup  KeyLookup
	adapter primitives.Adapter
}

// literal returns the identifier of a bare argument such as a key or a
// number.
func literal(node *parseNode) (string, error) {
	if len(node.args) != 0 || node.weight != 0 {
		return "", parseError("expected a literal argument, got %s",
			node.identifier)
	}
	return node.identifier, nil
}

func (p *parser) convert(node *parseNode, weighted bool) (*Policy, error) {
	if node.weight != 0 && !weighted {
		return nil, parseError("weight on %s outside of or",
			node.identifier)
	}

	expectArgs := func(num int) error {
		if len(node.args) != num {
			return parseError("%s expects %d arguments, got %d",
				node.identifier, num, len(node.args))
		}
		return nil
	}

	switch node.identifier {
	case "UNSATISFIABLE", "TRIVIAL":
		if err := expectArgs(0); err != nil {
			return nil, err
		}
		if node.identifier == "TRIVIAL" {
			return &Policy{Kind: KindTrivial}, nil
		}
		return &Policy{Kind: KindUnsatisfiable}, nil

	case "pk":
		if err := expectArgs(1); err != nil {
			return nil, err
		}
		name, err := literal(node.args[0])
		if err != nil {
			return nil, err
		}
		key, err := p.lookup(name)
		if err != nil {
			return nil, parseError("unknown key %s: %v", name, err)
		}
		if len(key) != 33 {
			return nil, parseError("key %s must be 33 bytes, got %d",
				name, len(key))
		}
		if _, err := p.adapter.VerifyKeyBytes(key); err != nil {
			return nil, parseError("key %s: %v", name, err)
		}
		return &Policy{Kind: KindKey, Key: key}, nil

	case "after", "older":
		if err := expectArgs(1); err != nil {
			return nil, err
		}
		text, err := literal(node.args[0])
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil || n < 1 || n >= 1<<31 {
			return nil, parseError("%s(n) -> n must 1 ≤ n < 2^31, "+
				"but got: %s", node.identifier, text)
		}
		kind := KindAfter
		if node.identifier == "older" {
			kind = KindOlder
		}
		return &Policy{Kind: kind, Value: n}, nil

	case "sha256", "hash256", "ripemd160", "hash160":
		if err := expectArgs(1); err != nil {
			return nil, err
		}
		kind, _ := primitives.HashKindFromString(node.identifier)
		text, err := literal(node.args[0])
		if err != nil {
			return nil, err
		}
		hash, err := hex.DecodeString(text)
		if err != nil || len(hash) != kind.DigestLen() {
			return nil, parseError("%s expects a %d byte hex hash, "+
				"got %s", kind, kind.DigestLen(), text)
		}
		return &Policy{Kind: KindHash, HashKind: kind, Hash: hash}, nil

	case "and", "or":
		if err := expectArgs(2); err != nil {
			return nil, err
		}
		isOr := node.identifier == "or"
		result := &Policy{Kind: KindAnd}
		if isOr {
			result.Kind = KindOr
			result.Weights = []int{1, 1}
		}
		for i, arg := range node.args {
			sub, err := p.convert(arg, isOr)
			if err != nil {
				return nil, err
			}
			result.Subs = append(result.Subs, sub)
			if isOr && arg.weight != 0 {
				result.Weights[i] = arg.weight
			}
		}
		return result, nil

	case "thresh":
		if len(node.args) < 2 {
			return nil, parseError("thresh expects a threshold and "+
				"at least one sub-policy, got %d arguments",
				len(node.args))
		}
		text, err := literal(node.args[0])
		if err != nil {
			return nil, err
		}
		k, err := strconv.ParseUint(text, 10, 31)
		if err != nil {
			return nil, parseError("invalid threshold %s", text)
		}
		result := &Policy{Kind: KindThresh, K: int(k)}
		for _, arg := range node.args[1:] {
			sub, err := p.convert(arg, false)
			if err != nil {
				return nil, err
			}
			result.Subs = append(result.Subs, sub)
		}
		return result, nil
	}

	return nil, parseError("unknown policy fragment %q", node.identifier)
}
