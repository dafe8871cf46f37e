package miniscript

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SemanticKind is the kind of a node of a semantic policy.
type SemanticKind uint8

const (
	SemanticUnsatisfiable SemanticKind = iota
	SemanticTrivial
	SemanticKey
	SemanticKeyHash
	SemanticOlder
	SemanticAfter
	SemanticSha256
	SemanticHash256
	SemanticRipemd160
	SemanticHash160
	SemanticThresh
)

// Semantic is the spending condition described by a fragment tree, without
// the script details of how it is checked.  Every and, or and multisig is
// expressed as a threshold.
type Semantic struct {
	Kind SemanticKind

	// Key is the public key of a Key node, KeyHash the key hash of a
	// KeyHash node and Hash the hash of a hash lock.
	Key     []byte
	KeyHash []byte
	Hash    []byte

	// Value is the lock time of Older and After nodes.
	Value uint64

	// K is the threshold of a Thresh node over Subs.
	K    int
	Subs []*Semantic
}

// String returns the policy text of the semantic tree, e.g.
// "thresh(1,pk(02..),older(144))".
func (s *Semantic) String() string {
	switch s.Kind {
	case SemanticUnsatisfiable:
		return "UNSATISFIABLE"
	case SemanticTrivial:
		return "TRIVIAL"
	case SemanticKey:
		return fmt.Sprintf("pk(%s)", hex.EncodeToString(s.Key))
	case SemanticKeyHash:
		return fmt.Sprintf("pkh(%s)", hex.EncodeToString(s.KeyHash))
	case SemanticOlder:
		return fmt.Sprintf("older(%d)", s.Value)
	case SemanticAfter:
		return fmt.Sprintf("after(%d)", s.Value)
	case SemanticSha256:
		return fmt.Sprintf("sha256(%x)", s.Hash)
	case SemanticHash256:
		return fmt.Sprintf("hash256(%x)", s.Hash)
	case SemanticRipemd160:
		return fmt.Sprintf("ripemd160(%x)", s.Hash)
	case SemanticHash160:
		return fmt.Sprintf("hash160(%x)", s.Hash)
	}

	subs := make([]string, len(s.Subs))
	for i, sub := range s.Subs {
		subs[i] = sub.String()
	}
	return fmt.Sprintf("thresh(%d,%s)", s.K, strings.Join(subs, ","))
}

var semanticHashKinds = map[Fragment]SemanticKind{
	FragSha256:    SemanticSha256,
	FragHash256:   SemanticHash256,
	FragRipemd160: SemanticRipemd160,
	FragHash160:   SemanticHash160,
}

// NewSemanticThresh returns a threshold of k out of subs.  The result is not
// normalized.
func NewSemanticThresh(k int, subs ...*Semantic) *Semantic {
	return &Semantic{Kind: SemanticThresh, K: k, Subs: subs}
}

// Lift returns the normalized semantic policy of a fragment tree.  Keys and
// hashes must be assigned.
func Lift(a *AST) (*Semantic, error) {
	s, err := lift(a)
	if err != nil {
		return nil, err
	}
	return s.Normalize(), nil
}

func lift(a *AST) (*Semantic, error) {
	for i, value := range a.values {
		if value == nil {
			return nil, fmt.Errorf("empty value for %s (%s)",
				a.fragment, a.names[i])
		}
	}

	subs := make([]*Semantic, len(a.args))
	for i, arg := range a.args {
		sub, err := lift(arg)
		if err != nil {
			return nil, err
		}
		subs[i] = sub
	}

	switch a.fragment {
	case FragFalse:
		return &Semantic{Kind: SemanticUnsatisfiable}, nil

	case FragTrue:
		return &Semantic{Kind: SemanticTrivial}, nil

	case FragPkK:
		return &Semantic{Kind: SemanticKey, Key: a.values[0]}, nil

	case FragPkH:
		if len(a.values[0]) == keyHashLen {
			return &Semantic{
				Kind:    SemanticKeyHash,
				KeyHash: a.values[0],
			}, nil
		}
		return &Semantic{Kind: SemanticKey, Key: a.values[0]}, nil

	case FragOlder:
		return &Semantic{Kind: SemanticOlder, Value: a.k}, nil

	case FragAfter:
		return &Semantic{Kind: SemanticAfter, Value: a.k}, nil

	case FragSha256, FragHash256, FragRipemd160, FragHash160:
		return &Semantic{
			Kind: semanticHashKinds[a.fragment],
			Hash: a.values[0],
		}, nil

	case FragAndOr:
		return NewSemanticThresh(1, NewSemanticThresh(2, subs[0], subs[1]),
			subs[2]), nil

	case FragAndV, FragAndB:
		return NewSemanticThresh(2, subs...), nil

	case FragOrB, FragOrC, FragOrD, FragOrI:
		return NewSemanticThresh(1, subs...), nil

	case FragThresh:
		return NewSemanticThresh(int(a.k), subs...), nil

	case FragMulti:
		keys := make([]*Semantic, len(a.values))
		for i, key := range a.values {
			keys[i] = &Semantic{Kind: SemanticKey, Key: key}
		}
		return NewSemanticThresh(int(a.k), keys...), nil

	case FragWrapA, FragWrapS, FragWrapC, FragWrapD, FragWrapV, FragWrapJ,
		FragWrapN:

		return subs[0], nil
	}
	return nil, fmt.Errorf("unknown fragment: %s", a.fragment)
}

// Normalize simplifies the tree bottom up:
//   - trivial children of a threshold are dropped, lowering k, and
//     unsatisfiable children are dropped;
//   - a threshold with k <= 0 is trivial, one with k > n is unsatisfiable;
//   - nested ands (k == n) and nested ors (k == 1) are flattened;
//   - thresh(1,x) becomes x;
//   - children are sorted by their text.
func (s *Semantic) Normalize() *Semantic {
	if s.Kind != SemanticThresh {
		return s
	}

	k := s.K
	var subs []*Semantic
	for _, sub := range s.Subs {
		sub = sub.Normalize()
		switch sub.Kind {
		case SemanticTrivial:
			k--
			continue
		case SemanticUnsatisfiable:
			continue
		}
		subs = append(subs, sub)
	}

	n := len(subs)
	switch {
	case k <= 0:
		return &Semantic{Kind: SemanticTrivial}
	case k > n:
		return &Semantic{Kind: SemanticUnsatisfiable}
	case n == 1:
		return subs[0]
	}

	isAnd := k == n
	isOr := k == 1
	var flat []*Semantic
	for _, sub := range subs {
		if sub.Kind == SemanticThresh {
			subAnd := sub.K == len(sub.Subs)
			subOr := sub.K == 1
			if isAnd && subAnd || isOr && subOr {
				flat = append(flat, sub.Subs...)
				if isAnd {
					k += len(sub.Subs) - 1
				}
				continue
			}
		}
		flat = append(flat, sub)
	}

	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].String() < flat[j].String()
	})
	return &Semantic{Kind: SemanticThresh, K: k, Subs: flat}
}
