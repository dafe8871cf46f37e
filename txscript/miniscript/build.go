package miniscript

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/elementsutil/primitives"
)

// newLeaf finalizes a leaf node holding the given values.
func newLeaf(frag Fragment, k uint64, values ...[]byte) (*AST, error) {
	node := &AST{fragment: frag, k: k}
	for _, v := range values {
		if !validValueLen(frag, len(v)) {
			return nil, fmt.Errorf("%s: invalid argument length %d",
				frag, len(v))
		}
		node.names = append(node.names, hex.EncodeToString(v))
		node.values = append(node.values, append([]byte(nil), v...))
	}
	return finalize(node)
}

// mustLeaf is used for leaves that can not fail to finalize.
func mustLeaf(frag Fragment) *AST {
	node, err := finalize(&AST{fragment: frag})
	if err != nil {
		panic(err)
	}
	return node
}

// NewFalse returns the fragment 0.
func NewFalse() *AST {
	return mustLeaf(FragFalse)
}

// NewTrue returns the fragment 1.
func NewTrue() *AST {
	return mustLeaf(FragTrue)
}

// NewPkK returns pk_k(key) for a 33 byte compressed key.
func NewPkK(key []byte) (*AST, error) {
	return newLeaf(FragPkK, 0, key)
}

// NewPkH returns pk_h(key) for a 33 byte compressed key or a 20 byte key
// hash.
func NewPkH(keyOrHash []byte) (*AST, error) {
	return newLeaf(FragPkH, 0, keyOrHash)
}

// checkLockTime validates the argument of older and after.
func checkLockTime(frag Fragment, n uint64) error {
	if n < 1 || n >= (1<<31) {
		return fmt.Errorf("%s(n) -> n must 1 ≤ n < 2^31, but got: %d",
			frag, n)
	}
	return nil
}

// NewOlder returns older(n), a relative time lock.
func NewOlder(n uint64) (*AST, error) {
	if err := checkLockTime(FragOlder, n); err != nil {
		return nil, err
	}
	return newLeaf(FragOlder, n)
}

// NewAfter returns after(n), an absolute time lock.
func NewAfter(n uint64) (*AST, error) {
	if err := checkLockTime(FragAfter, n); err != nil {
		return nil, err
	}
	return newLeaf(FragAfter, n)
}

// NewHashLock returns the hash lock of the given kind over hash.
func NewHashLock(kind primitives.HashKind, hash []byte) (*AST, error) {
	return newLeaf(hashLockFragment(kind), 0, hash)
}

// NewMulti returns multi(k,keys...).
func NewMulti(k int, keys [][]byte) (*AST, error) {
	if k < 1 || k > len(keys) {
		return nil, fmt.Errorf("multi(k) -> k must 1 ≤ k ≤ n, but got "+
			"k=%d, n=%d", k, len(keys))
	}
	return newLeaf(FragMulti, uint64(k), keys...)
}

// NewThresh returns thresh(k,subs...).
func NewThresh(k int, subs []*AST) (*AST, error) {
	if k < 1 || k > len(subs) {
		return nil, fmt.Errorf("thresh(k) -> k must 1 ≤ k ≤ n, but got "+
			"k=%d, n=%d", k, len(subs))
	}
	return finalize(&AST{
		fragment: FragThresh,
		k:        uint64(k),
		args:     append([]*AST(nil), subs...),
	})
}

// NewWrapper applies one of the wrappers a, s, c, d, v, j or n.  An error is
// returned if the sub-expression does not have the type the wrapper
// requires.
func NewWrapper(frag Fragment, sub *AST) (*AST, error) {
	if !frag.IsWrapper() {
		return nil, fmt.Errorf("%s is not a wrapper", frag)
	}
	return finalize(&AST{fragment: frag, args: []*AST{sub}})
}

// NewCombinator returns one of the combinators andor, and_v, and_b, or_b,
// or_c, or_d and or_i over its sub-expressions.  An error is returned if the
// sub-expressions do not have the types the combinator requires.
func NewCombinator(frag Fragment, subs ...*AST) (*AST, error) {
	want := 2
	switch frag {
	case FragAndOr:
		want = 3
	case FragAndV, FragAndB, FragOrB, FragOrC, FragOrD, FragOrI:
	default:
		return nil, fmt.Errorf("%s is not a combinator", frag)
	}
	if len(subs) != want {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", frag,
			want, len(subs))
	}
	return finalize(&AST{
		fragment: frag,
		args:     append([]*AST(nil), subs...),
	})
}
