package miniscript

import (
	"fmt"
	"sort"
)

type maxInt struct {
	valid bool
	value int
}

var (
	zero    = maxInt{valid: true, value: 0}
	invalid = maxInt{valid: false}
)

// validInt returns a valid maxInt holding v.
func validInt(v int) maxInt {
	return maxInt{valid: true, value: v}
}

func (m maxInt) and(b maxInt) maxInt {
	if !m.valid || !b.valid {
		return maxInt{}
	}
	return maxInt{
		valid: true,
		value: m.value + b.value,
	}
}

func (m maxInt) or(b maxInt) maxInt {
	if !m.valid {
		return b
	}
	if !b.valid {
		return m
	}
	if m.value >= b.value {
		return maxInt{
			valid: true,
			value: m.value,
		}
	}
	return maxInt{
		valid: true,
		value: b.value,
	}
}

// plus adds a constant to a valid value.
func (m maxInt) plus(v int) maxInt {
	return m.and(validInt(v))
}

// thresholdMax returns the maximum over all ways of satisfying exactly k of
// the n sub-expressions of the sum of the satisfaction values of the chosen
// ones and the dissatisfaction values of the others.
//
// Sub-expressions without a dissatisfaction must be chosen, those without a
// satisfaction can not be. The remaining choices are filled with the largest
// sat-dsat differences.
func thresholdMax(k int, sat, dsat []maxInt) maxInt {
	total := 0
	forced := 0
	var diffs []int
	for i := range sat {
		switch {
		case !dsat[i].valid && !sat[i].valid:
			return invalid

		case !dsat[i].valid:
			forced++
			total += sat[i].value

		case !sat[i].valid:
			total += dsat[i].value

		default:
			total += dsat[i].value
			diffs = append(diffs, sat[i].value-dsat[i].value)
		}
	}

	remaining := k - forced
	if remaining < 0 || remaining > len(diffs) {
		return invalid
	}
	sort.Sort(sort.Reverse(sort.IntSlice(diffs)))
	for _, diff := range diffs[:remaining] {
		total += diff
	}
	return validInt(total)
}

type ops struct {
	// count is the number of non-push opcodes.
	count int

	// dsat is the number of keys in possibly executed
	// OP_CHECKMULTISIG(VERIFY)s to dissatisfy.
	dsat maxInt

	// sat is the number of keys in possibly executed
	// OP_CHECKMULTISIG(VERIFY)s to satisfy.
	sat maxInt
}

// MaxOpCount returns the maximum number of ops needed to satisfy this script
// in a non-malleable way.
func (a *AST) MaxOpCount() int {
	return a.opCount.count + a.opCount.sat.value
}

func computeOpCount(node *AST) (*AST, error) {
	switch node.fragment {
	case FragFalse:
		node.opCount = ops{0, zero, invalid}

	case FragTrue:
		node.opCount = ops{0, invalid, zero}

	case FragPkK:
		node.opCount = ops{0, zero, zero}

	case FragPkH:
		node.opCount = ops{3, zero, zero}

	case FragOlder, FragAfter:
		node.opCount = ops{1, invalid, zero}

	case FragSha256, FragHash256, FragRipemd160, FragHash160:
		node.opCount = ops{4, zero, zero}

	case FragAndOr:
		x, y, z := node.args[0], node.args[1], node.args[2]
		node.opCount = ops{
			3 + x.opCount.count + y.opCount.count + z.opCount.count,
			z.opCount.dsat.and(x.opCount.dsat),
			y.opCount.sat.and(x.opCount.sat).or(
				z.opCount.sat.and(x.opCount.dsat),
			),
		}

	case FragAndV:
		x, y := node.args[0], node.args[1]
		node.opCount = ops{
			x.opCount.count + y.opCount.count,
			invalid,
			y.opCount.sat.and(x.opCount.sat),
		}

	case FragAndB:
		x, y := node.args[0], node.args[1]
		node.opCount = ops{
			1 + x.opCount.count + y.opCount.count,
			y.opCount.dsat.and(x.opCount.dsat),
			y.opCount.sat.and(x.opCount.sat),
		}

	case FragOrB:
		x, z := node.args[0], node.args[1]
		node.opCount = ops{
			1 + x.opCount.count + z.opCount.count,
			z.opCount.dsat.and(x.opCount.dsat),
			z.opCount.dsat.and(x.opCount.sat).or(
				z.opCount.sat.and(x.opCount.dsat),
			),
		}

	case FragOrC:
		x, z := node.args[0], node.args[1]
		node.opCount = ops{
			2 + x.opCount.count + z.opCount.count,
			invalid,
			x.opCount.sat.or(z.opCount.sat.and(x.opCount.dsat)),
		}

	case FragOrD:
		x, z := node.args[0], node.args[1]
		node.opCount = ops{
			3 + x.opCount.count + z.opCount.count,
			z.opCount.dsat.and(x.opCount.dsat),
			x.opCount.sat.or(z.opCount.sat.and(x.opCount.dsat)),
		}

	case FragOrI:
		x, z := node.args[0], node.args[1]
		node.opCount = ops{
			3 + x.opCount.count + z.opCount.count,
			x.opCount.dsat.or(z.opCount.dsat),
			x.opCount.sat.or(z.opCount.sat),
		}

	case FragThresh:
		count := 0
		dsat := zero
		sats := make([]maxInt, len(node.args))
		dsats := make([]maxInt, len(node.args))
		for i, arg := range node.args {
			count += arg.opCount.count + 1
			dsat = dsat.and(arg.opCount.dsat)
			sats[i], dsats[i] = arg.opCount.sat, arg.opCount.dsat
		}
		sat := thresholdMax(int(node.k), sats, dsats)
		node.opCount = ops{count, dsat, sat}

	case FragMulti:
		n := len(node.values)
		node.opCount = ops{1, validInt(n), validInt(n)}

	case FragWrapA:
		x := node.args[0]
		node.opCount = ops{
			2 + x.opCount.count,
			x.opCount.dsat,
			x.opCount.sat,
		}

	case FragWrapS, FragWrapC, FragWrapN:
		x := node.args[0]
		node.opCount = ops{
			1 + x.opCount.count,
			x.opCount.dsat, x.opCount.sat,
		}

	case FragWrapD:
		x := node.args[0]
		node.opCount = ops{
			3 + x.opCount.count,
			zero, x.opCount.sat,
		}

	case FragWrapV:
		x := node.args[0]
		opVerify := 0
		if !node.args[0].props.canCollapseVerify {
			opVerify = 1
		}
		node.opCount = ops{
			opVerify + x.opCount.count, invalid, x.opCount.sat,
		}

	case FragWrapJ:
		x := node.args[0]
		node.opCount = ops{4 + x.opCount.count, zero, x.opCount.sat}

	default:
		return nil, fmt.Errorf("unknown fragment: %s", node.fragment)
	}

	return node, nil
}

const (
	// maxSigSize is the size of a DER signature with the sighash byte in a
	// witness, length prefix included.
	maxSigSize = 73

	// keyWitnessSize is the size of a compressed key in a witness, length
	// prefix included.
	keyWitnessSize = 34

	// preimageWitnessSize is the size of a 32 byte preimage in a witness,
	// length prefix included.
	preimageWitnessSize = 33
)

// witnessSize holds the maximum size of the satisfaction and the
// dissatisfaction of a node.  An invalid value means the node can not be
// satisfied (or dissatisfied) at all.
type witnessSize struct {
	sat, dsat maxInt
}

// MaxSatisfactionSize returns the maximum size in bytes of the witness
// elements satisfying this node, length prefixes included.  The second
// return value is false if the node can not be satisfied.
func (a *AST) MaxSatisfactionSize() (int, bool) {
	return a.witness.sat.value, a.witness.sat.valid
}

// MaxDissatisfactionSize returns the maximum size in bytes of the witness
// elements dissatisfying this node.  The second return value is false if the
// node can not be dissatisfied.
func (a *AST) MaxDissatisfactionSize() (int, bool) {
	return a.witness.dsat.value, a.witness.dsat.valid
}

// MaxStackItems returns the maximum number of witness elements of a
// satisfaction of this node.
func (a *AST) MaxStackItems() (int, bool) {
	return a.stack.sat.value, a.stack.sat.valid
}

// computeWitnessSize computes the maximum witness size in bytes and the
// maximum number of witness elements of a node.
func computeWitnessSize(node *AST) (*AST, error) {
	// The combination rules are the same for bytes and elements; only the
	// leaves and the constants pushed by or_i, d and j differ.
	var leafBytes, leafItems witnessSize
	oneBytes, oneItems := 2, 1   // the <1> pushed to select a branch
	zeroBytes, zeroItems := 1, 1 // the empty element

	switch node.fragment {
	case FragFalse:
		leafBytes = witnessSize{invalid, zero}
		leafItems = leafBytes

	case FragTrue, FragOlder, FragAfter:
		leafBytes = witnessSize{zero, invalid}
		leafItems = leafBytes

	case FragPkK:
		leafBytes = witnessSize{validInt(maxSigSize), validInt(zeroBytes)}
		leafItems = witnessSize{validInt(1), validInt(1)}

	case FragPkH:
		leafBytes = witnessSize{
			validInt(maxSigSize + keyWitnessSize),
			validInt(zeroBytes + keyWitnessSize),
		}
		leafItems = witnessSize{validInt(2), validInt(2)}

	case FragSha256, FragHash256, FragRipemd160, FragHash160:
		leafBytes = witnessSize{
			validInt(preimageWitnessSize),
			validInt(preimageWitnessSize),
		}
		leafItems = witnessSize{validInt(1), validInt(1)}

	case FragMulti:
		k := int(node.k)
		leafBytes = witnessSize{
			validInt(zeroBytes + k*maxSigSize),
			validInt(zeroBytes + k*zeroBytes),
		}
		leafItems = witnessSize{validInt(1 + k), validInt(1 + k)}

	default:
		sizes := func(a *AST) witnessSize { return a.witness }
		var err error
		node.witness, err = combineWitness(
			node, sizes, oneBytes, zeroBytes,
		)
		if err != nil {
			return nil, err
		}
		items := func(a *AST) witnessSize { return a.stack }
		node.stack, err = combineWitness(node, items, oneItems, zeroItems)
		if err != nil {
			return nil, err
		}
		return node, nil
	}

	node.witness = leafBytes
	node.stack = leafItems
	return node, nil
}

// combineWitness computes the satisfaction and dissatisfaction sizes of a
// combinator or wrapper from the sizes of its children.  one and empty are
// the sizes of the <1> and the empty element pushed by or_i, d and j.
func combineWitness(node *AST, size func(*AST) witnessSize, one,
	empty int) (witnessSize, error) {

	switch node.fragment {
	case FragAndOr:
		x, y, z := size(node.args[0]), size(node.args[1]),
			size(node.args[2])
		return witnessSize{
			sat:  y.sat.and(x.sat).or(z.sat.and(x.dsat)),
			dsat: z.dsat.and(x.dsat),
		}, nil

	case FragAndV:
		x, y := size(node.args[0]), size(node.args[1])
		return witnessSize{sat: x.sat.and(y.sat), dsat: invalid}, nil

	case FragAndB:
		x, y := size(node.args[0]), size(node.args[1])
		return witnessSize{
			sat:  x.sat.and(y.sat),
			dsat: x.dsat.and(y.dsat),
		}, nil

	case FragOrB:
		x, z := size(node.args[0]), size(node.args[1])
		return witnessSize{
			sat:  x.sat.and(z.dsat).or(x.dsat.and(z.sat)),
			dsat: x.dsat.and(z.dsat),
		}, nil

	case FragOrC:
		x, z := size(node.args[0]), size(node.args[1])
		return witnessSize{
			sat:  x.sat.or(x.dsat.and(z.sat)),
			dsat: invalid,
		}, nil

	case FragOrD:
		x, z := size(node.args[0]), size(node.args[1])
		return witnessSize{
			sat:  x.sat.or(x.dsat.and(z.sat)),
			dsat: x.dsat.and(z.dsat),
		}, nil

	case FragOrI:
		x, z := size(node.args[0]), size(node.args[1])
		return witnessSize{
			sat:  x.sat.plus(one).or(z.sat.plus(empty)),
			dsat: x.dsat.plus(one).or(z.dsat.plus(empty)),
		}, nil

	case FragThresh:
		sats := make([]maxInt, len(node.args))
		dsats := make([]maxInt, len(node.args))
		dsat := zero
		for i, arg := range node.args {
			s := size(arg)
			sats[i], dsats[i] = s.sat, s.dsat
			dsat = dsat.and(s.dsat)
		}
		return witnessSize{
			sat:  thresholdMax(int(node.k), sats, dsats),
			dsat: dsat,
		}, nil

	case FragWrapA, FragWrapS, FragWrapC, FragWrapN:
		return size(node.args[0]), nil

	case FragWrapD:
		x := size(node.args[0])
		return witnessSize{
			sat:  x.sat.plus(one),
			dsat: validInt(empty),
		}, nil

	case FragWrapV:
		x := size(node.args[0])
		return witnessSize{sat: x.sat, dsat: invalid}, nil

	case FragWrapJ:
		x := size(node.args[0])
		return witnessSize{sat: x.sat, dsat: validInt(empty)}, nil
	}

	return witnessSize{}, fmt.Errorf("unknown fragment: %s", node.fragment)
}
