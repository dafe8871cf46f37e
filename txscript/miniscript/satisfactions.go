package miniscript

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/elementsutil/wire"
)

// SignFunc returns a signature, including its sighash byte, for a public key.
// The boolean is false when the key can not sign.
type SignFunc func(pubKey []byte) (signature []byte, available bool)

// PreimageFunc returns the preimage of a hash.  hashFunc is the name of the
// hash lock fragment, e.g. "sha256".
type PreimageFunc func(hashFunc string, hash []byte) (preimage []byte,
	available bool)

// Satisfier supplies the secrets and transaction context needed to build a
// witness.
type Satisfier struct {
	// CheckOlder reports whether a relative time lock has passed for the
	// spending input.  See CheckOlder.
	CheckOlder func(locktime uint32) (bool, error)

	// CheckAfter reports whether an absolute time lock has passed for the
	// spending transaction.  See CheckAfter.
	CheckAfter func(locktime uint32) (bool, error)

	Sign     SignFunc
	Preimage PreimageFunc

	// LookupKey maps a key hash to its public key.  Only pk_h nodes
	// recovered from a script need it.
	LookupKey func(keyHash []byte) (pubKey []byte, available bool)
}

// witnessOption is one way of satisfying or dissatisfying a node.
type witnessOption struct {
	// stack lists the items bottom first.
	stack wire.TxWitness

	// ok is false when no such witness can be built.
	ok bool

	// malleable is set when a third party could replace the witness by
	// another valid one.
	malleable bool

	// signed is set when the witness carries a signature.  A signed
	// malleable witness can only be changed by the signers.
	signed bool
}

// impossible is the option used when a witness does not exist.
var impossible = witnessOption{}

// push returns the witness made of items.
func push(items ...[]byte) witnessOption {
	return witnessOption{stack: append(wire.TxWitness{}, items...), ok: true}
}

// emptyPush is the empty push a dissatisfied fragment consumes.
func emptyPush() witnessOption { return push([]byte{}) }

func (o witnessOption) malleated() witnessOption {
	o.malleable = true
	return o
}

// cat stacks parts bottom to top.  The node executed first consumes the top
// of the stack, so its part comes last.
func cat(parts ...witnessOption) witnessOption {
	joined := witnessOption{ok: true}
	for _, part := range parts {
		joined.stack = append(joined.stack, part.stack...)
		joined.ok = joined.ok && part.ok
		joined.malleable = joined.malleable || part.malleable
		joined.signed = joined.signed || part.signed
	}
	return joined
}

// choose returns the better of two witnesses for the same node.  Neither
// argument is modified.
func choose(a, b witnessOption) witnessOption {
	switch {
	case !a.ok:
		return b
	case !b.ok:
		return a

	// Anyone can turn the unsigned witness into the signed one's
	// sibling, so the unsigned one is the only safe pick.
	case !a.signed && b.signed:
		return a
	case a.signed && !b.signed:
		return b

	case !a.signed:
		a, b = a.malleated(), b.malleated()
	case a.malleable != b.malleable:
		if a.malleable {
			return b
		}
		return a
	}
	if a.stack.SerializeSize() <= b.stack.SerializeSize() {
		return a
	}
	return b
}

// chooseAll folds choose over options from left to right.
func chooseAll(first witnessOption, rest ...witnessOption) witnessOption {
	for _, option := range rest {
		first = choose(first, option)
	}
	return first
}

// witnessPair holds the best dissatisfaction and satisfaction of a node.
type witnessPair struct {
	dsat, sat witnessOption
}

func (s *Satisfier) signature(key []byte) witnessOption {
	sig, ok := s.Sign(key)
	if !ok {
		return impossible
	}
	option := push(sig)
	option.signed = true
	return option
}

// lockTimeReached reports whether txValue meets lockTime.  Both must be on
// the same side of threshold, which separates heights from timestamps.
func lockTimeReached(txValue, lockTime, threshold uint32) bool {
	if (txValue < threshold) != (lockTime < threshold) {
		return false
	}
	return lockTime <= txValue
}

// CheckOlder reports whether an input with sequence txInputSequence, in a
// transaction of version txVersion, meets the relative time lock of an older
// fragment (BIP68, BIP112).
func CheckOlder(lockTime uint32, txVersion uint32,
	txInputSequence uint32) bool {

	if txVersion < 2 || txInputSequence&wire.SequenceLockTimeDisabled != 0 {
		return false
	}
	const mask = wire.SequenceLockTimeIsSeconds | wire.SequenceLockTimeMask
	return lockTimeReached(txInputSequence&mask, lockTime&mask,
		wire.SequenceLockTimeIsSeconds)
}

// CheckAfter reports whether a transaction with lock time txLockTime meets
// the absolute time lock value of an after fragment (BIP65).  The spending
// input must not be final, or the lock time is ignored.
func CheckAfter(value uint32, txLockTime uint32, txInputSequence uint32) bool {
	if txInputSequence == wire.MaxTxInSequenceNum {
		return false
	}
	return lockTimeReached(txLockTime, value, txscript.LockTimeThreshold)
}

// Satisfy returns the smallest non-malleable witness for the node given the
// secrets the satisfier holds.  Each item is pushed as data, bottom first.
func (a *AST) Satisfy(satisfier *Satisfier) (wire.TxWitness, error) {
	pair, err := satisfier.produce(a)
	if err != nil {
		return nil, err
	}
	switch {
	case !pair.sat.ok:
		return nil, errors.New("no satisfaction could be found")
	case pair.sat.malleable:
		return nil, errors.New("only a malleable satisfaction could " +
			"be found")
	}
	log.Debugf("Satisfied %v with %d witness elements", a,
		len(pair.sat.stack))
	return pair.sat.stack, nil
}

// produce computes the witnesses of a node from those of its arguments.
func (s *Satisfier) produce(node *AST) (witnessPair, error) {
	for i, value := range node.values {
		if value == nil {
			return witnessPair{}, fmt.Errorf("empty value for %s (%s)",
				node.fragment, node.names[i])
		}
	}

	args := make([]witnessPair, len(node.args))
	for i, arg := range node.args {
		pair, err := s.produce(arg)
		if err != nil {
			return witnessPair{}, err
		}
		args[i] = pair
	}
	one := push([]byte{1})

	switch node.fragment {
	case FragFalse:
		return witnessPair{dsat: push(), sat: impossible}, nil

	case FragTrue:
		return witnessPair{dsat: impossible, sat: push()}, nil

	case FragPkK:
		return witnessPair{
			dsat: emptyPush(),
			sat:  s.signature(node.values[0]),
		}, nil

	case FragPkH:
		key := node.values[0]
		if len(key) == keyHashLen {
			var ok bool
			if s.LookupKey != nil {
				key, ok = s.LookupKey(key)
			}
			if !ok {
				return witnessPair{dsat: impossible, sat: impossible}, nil
			}
		}
		return witnessPair{
			dsat: cat(emptyPush(), push(key)),
			sat:  cat(s.signature(key), push(key)),
		}, nil

	case FragOlder, FragAfter:
		check := s.CheckOlder
		if node.fragment == FragAfter {
			check = s.CheckAfter
		}
		passed, err := check(uint32(node.k))
		if err != nil {
			return witnessPair{}, err
		}
		if !passed {
			return witnessPair{dsat: impossible, sat: impossible}, nil
		}
		return witnessPair{dsat: impossible, sat: push()}, nil

	case FragSha256, FragRipemd160, FragHash256, FragHash160:
		hash := node.values[0]
		preimage, ok := s.Preimage(node.fragment.String(), hash)
		if ok && len(preimage) != 32 {
			return witnessPair{}, fmt.Errorf("%s preimage of %x has "+
				"%d bytes, want 32", node.fragment, hash,
				len(preimage))
		}
		sat := impossible
		if ok {
			sat = push(preimage)
		}

		// Nobody is expected to know a preimage of the zero hash
		// input, but a third party can still swap it.
		return witnessPair{
			dsat: push(make([]byte, 32)).malleated(),
			sat:  sat,
		}, nil

	case FragAndOr:
		x, y, z := args[0], args[1], args[2]
		return witnessPair{
			dsat: choose(cat(z.dsat, x.dsat), cat(y.dsat, x.sat)),
			sat:  choose(cat(y.sat, x.sat), cat(z.sat, x.dsat)),
		}, nil

	case FragAndV:
		x, y := args[0], args[1]
		return witnessPair{
			dsat: cat(y.dsat, x.sat),
			sat:  cat(y.sat, x.sat),
		}, nil

	case FragAndB:
		x, y := args[0], args[1]
		return witnessPair{
			dsat: chooseAll(cat(y.dsat, x.dsat),
				cat(y.sat, x.dsat).malleated(),
				cat(y.dsat, x.sat).malleated()),
			sat: cat(y.sat, x.sat),
		}, nil

	case FragOrB:
		x, z := args[0], args[1]
		return witnessPair{
			dsat: cat(z.dsat, x.dsat),
			sat: chooseAll(cat(z.dsat, x.sat), cat(z.sat, x.dsat),
				cat(z.sat, x.sat).malleated()),
		}, nil

	case FragOrC, FragOrD:
		x, z := args[0], args[1]
		pair := witnessPair{
			dsat: impossible,
			sat:  choose(x.sat, cat(z.sat, x.dsat)),
		}
		if node.fragment == FragOrD {
			pair.dsat = cat(z.dsat, x.dsat)
		}
		return pair, nil

	case FragOrI:
		x, z := args[0], args[1]
		return witnessPair{
			dsat: choose(cat(x.dsat, one), cat(z.dsat, emptyPush())),
			sat:  choose(cat(x.sat, one), cat(z.sat, emptyPush())),
		}, nil

	case FragThresh:
		// byCount[j] satisfies exactly j of the arguments seen so far.
		// A later argument runs after the earlier ones, so its part
		// goes below theirs.
		byCount := []witnessOption{push()}
		for _, arg := range args {
			next := make([]witnessOption, len(byCount)+1)
			next[0] = cat(arg.dsat, byCount[0])
			for j := 1; j < len(byCount); j++ {
				next[j] = choose(cat(arg.dsat, byCount[j]),
					cat(arg.sat, byCount[j-1]))
			}
			next[len(byCount)] = cat(arg.sat, byCount[len(byCount)-1])
			byCount = next
		}

		// Any count other than 0 and k fails the threshold, so it
		// dissatisfies too, malleably.
		dsat := byCount[0]
		for j, option := range byCount[1:] {
			if uint64(j+1) != node.k {
				dsat = choose(dsat, option.malleated())
			}
		}
		return witnessPair{dsat: dsat, sat: byCount[node.k]}, nil

	case FragMulti:
		// bySigs[j] holds j signatures for the keys seen so far, in
		// key order as CHECKMULTISIG expects.
		bySigs := []witnessOption{push()}
		for _, key := range node.values {
			sig := s.signature(key)
			next := make([]witnessOption, len(bySigs)+1)
			next[0] = bySigs[0]
			for j := 1; j < len(bySigs); j++ {
				next[j] = choose(bySigs[j], cat(bySigs[j-1], sig))
			}
			next[len(bySigs)] = cat(bySigs[len(bySigs)-1], sig)
			bySigs = next
		}

		// The extra item is consumed by the CHECKMULTISIG off-by-one.
		dsat := emptyPush()
		for i := uint64(0); i < node.k; i++ {
			dsat = cat(dsat, emptyPush())
		}
		return witnessPair{
			dsat: dsat,
			sat:  cat(emptyPush(), bySigs[node.k]),
		}, nil

	case FragWrapA, FragWrapS, FragWrapC, FragWrapN:
		return args[0], nil

	case FragWrapD:
		return witnessPair{dsat: emptyPush(), sat: cat(args[0].sat, one)}, nil

	case FragWrapV:
		return witnessPair{dsat: impossible, sat: args[0].sat}, nil

	case FragWrapJ:
		dsat := emptyPush()
		dsat.malleable = args[0].dsat.ok && !args[0].dsat.signed
		return witnessPair{dsat: dsat, sat: args[0].sat}, nil
	}
	return witnessPair{}, fmt.Errorf("unknown fragment: %s", node.fragment)
}
