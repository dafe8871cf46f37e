package miniscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// numPushLen returns the length of the minimal push of n.
func numPushLen(n int64) int {
	numPush, _ := txscript.NewScriptBuilder().AddInt64(n).Script()
	return len(numPush)
}

// Compute the length of the resulting witness script.
func computeScriptLen(node *AST) (*AST, error) {
	argsSummed := 0
	for _, arg := range node.args {
		argsSummed += arg.scriptLen
	}

	switch node.fragment {
	case FragFalse, FragTrue:
		node.scriptLen = 1

	case FragPkK:
		node.scriptLen = pubKeyDataPushLen

	case FragPkH:
		node.scriptLen = 24

	case FragOlder, FragAfter:
		node.scriptLen = 1 + numPushLen(int64(node.k))

	case FragSha256, FragHash256:
		node.scriptLen = 39

	case FragRipemd160, FragHash160:
		node.scriptLen = 27

	case FragAndOr, FragOrI, FragOrD, FragWrapD:
		node.scriptLen = argsSummed + 3

	case FragAndV:
		node.scriptLen = argsSummed

	case FragAndB, FragOrB, FragWrapS, FragWrapC, FragWrapN:
		node.scriptLen = argsSummed + 1

	case FragOrC, FragWrapA:
		node.scriptLen = argsSummed + 2

	case FragThresh:
		// One OP_ADD between every two sub-expressions, then <k> and
		// OP_EQUAL.
		node.scriptLen = argsSummed + len(node.args) - 1 +
			numPushLen(int64(node.k)) + 1

	case FragMulti:
		numKeys := len(node.values)
		node.scriptLen = numPushLen(int64(node.k)) +
			numKeys*pubKeyDataPushLen +
			numPushLen(int64(numKeys)) + 1

	case FragWrapV:
		if node.args[0].props.canCollapseVerify {
			// OP_VERIFY not needed, collapsed into OP_EQUALVERIFY,
			// OP_CHECKSIGVERIFY, OP_CHECKMULTISIGVERIFY
			node.scriptLen = argsSummed
		} else {
			node.scriptLen = argsSummed + 1
		}

	case FragWrapJ:
		node.scriptLen = argsSummed + 4

	default:
		return nil, fmt.Errorf("unknown fragment: %s", node.fragment)
	}

	return node, nil
}

// Script creates the witness script from a parsed miniscript.
func (a *AST) Script() ([]byte, error) {
	b := txscript.NewScriptBuilder()
	if err := buildScript(a, b, false); err != nil {
		return nil, err
	}
	return b.Script()
}

// hashLockOp returns the hashing opcode of a hash lock fragment.
func hashLockOp(frag Fragment) byte {
	switch frag {
	case FragSha256:
		return txscript.OP_SHA256
	case FragHash256:
		return txscript.OP_HASH256
	case FragRipemd160:
		return txscript.OP_RIPEMD160
	default:
		return txscript.OP_HASH160
	}
}

// keyHash returns the 20 byte hash pushed by a pk_h node.
func (a *AST) keyHash() []byte {
	key := a.values[0]
	if len(key) == keyHashLen {
		return key
	}
	return btcutil.Hash160(key)
}

// buildScript builds the script from the tree. collapseVerify is true if the
// rightmost opcode of the node is directly followed by the OP_VERIFY of a `v`
// wrapper. If so, the two opcodes `OP_CHECKSIG OP_VERIFY` are collapsed into
// one opcode `OP_CHECKSIGVERIFY` (same for OP_EQUAL and OP_CHECKMULTISIG).
// Only the last sub-expression of and_v and the child of s can end a node,
// all other children are built with collapseVerify false.
func buildScript(node *AST, b *txscript.ScriptBuilder,
	collapseVerify bool) error {

	build := func(i int, collapse bool) error {
		return buildScript(node.args[i], b, collapse)
	}
	for i, value := range node.values {
		if value == nil {
			return fmt.Errorf("empty value for %s (%s)",
				node.fragment, node.names[i])
		}
	}

	switch node.fragment {
	case FragFalse:
		b.AddOp(txscript.OP_FALSE)

	case FragTrue:
		b.AddOp(txscript.OP_TRUE)

	case FragPkK:
		b.AddData(node.values[0])

	case FragPkH:
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_HASH160)
		b.AddData(node.keyHash())
		b.AddOp(txscript.OP_EQUALVERIFY)

	case FragOlder:
		b.AddInt64(int64(node.k))
		b.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)

	case FragAfter:
		b.AddInt64(int64(node.k))
		b.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)

	case FragSha256, FragHash256, FragRipemd160, FragHash160:
		b.AddOp(txscript.OP_SIZE)
		b.AddInt64(32)
		b.AddOp(txscript.OP_EQUALVERIFY)
		b.AddOp(hashLockOp(node.fragment))
		b.AddData(node.values[0])
		if collapseVerify {
			b.AddOp(txscript.OP_EQUALVERIFY)
		} else {
			b.AddOp(txscript.OP_EQUAL)
		}

	case FragAndOr:
		if err := build(0, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := build(2, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ELSE)
		if err := build(1, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case FragAndV:
		if err := build(0, false); err != nil {
			return err
		}
		if err := build(1, collapseVerify); err != nil {
			return err
		}

	case FragAndB, FragOrB:
		if err := build(0, false); err != nil {
			return err
		}
		if err := build(1, false); err != nil {
			return err
		}
		if node.fragment == FragAndB {
			b.AddOp(txscript.OP_BOOLAND)
		} else {
			b.AddOp(txscript.OP_BOOLOR)
		}

	case FragOrC:
		if err := build(0, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := build(1, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case FragOrD:
		if err := build(0, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_IFDUP)
		b.AddOp(txscript.OP_NOTIF)
		if err := build(1, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case FragOrI:
		b.AddOp(txscript.OP_IF)
		if err := build(0, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ELSE)
		if err := build(1, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case FragThresh:
		for i := range node.args {
			if err := build(i, false); err != nil {
				return err
			}
			if i > 0 {
				b.AddOp(txscript.OP_ADD)
			}
		}
		b.AddInt64(int64(node.k))
		if collapseVerify {
			b.AddOp(txscript.OP_EQUALVERIFY)
		} else {
			b.AddOp(txscript.OP_EQUAL)
		}

	case FragMulti:
		b.AddInt64(int64(node.k))
		for _, key := range node.values {
			b.AddData(key)
		}
		b.AddInt64(int64(len(node.values)))
		if collapseVerify {
			b.AddOp(txscript.OP_CHECKMULTISIGVERIFY)
		} else {
			b.AddOp(txscript.OP_CHECKMULTISIG)
		}

	case FragWrapA:
		b.AddOp(txscript.OP_TOALTSTACK)
		if err := build(0, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_FROMALTSTACK)

	case FragWrapS:
		b.AddOp(txscript.OP_SWAP)
		if err := build(0, collapseVerify); err != nil {
			return err
		}

	case FragWrapC:
		if err := build(0, false); err != nil {
			return err
		}
		if collapseVerify {
			b.AddOp(txscript.OP_CHECKSIGVERIFY)
		} else {
			b.AddOp(txscript.OP_CHECKSIG)
		}

	case FragWrapD:
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_IF)
		if err := build(0, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case FragWrapV:
		collapse := node.args[0].props.canCollapseVerify
		if err := build(0, collapse); err != nil {
			return err
		}
		if !collapse {
			b.AddOp(txscript.OP_VERIFY)
		}

	case FragWrapJ:
		b.AddOp(txscript.OP_SIZE)
		b.AddOp(txscript.OP_0NOTEQUAL)
		b.AddOp(txscript.OP_IF)
		if err := build(0, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case FragWrapN:
		if err := build(0, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_0NOTEQUAL)

	default:
		return fmt.Errorf("unknown fragment: %s", node.fragment)
	}

	return nil
}
