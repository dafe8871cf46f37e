package miniscript

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// name returns the identifier of the i-th key or hash argument.
func (a *AST) name(i int) string {
	if i < len(a.names) && a.names[i] != "" {
		return a.names[i]
	}
	return hex.EncodeToString(a.values[i])
}

// String returns the miniscript text of the tree.  The sugared forms pk, pkh,
// and_n, t:, l: and u: are used wherever they apply, so the output parses back
// into the same tree.
func (a *AST) String() string {
	var b strings.Builder
	a.writeString(&b)
	return b.String()
}

// splitWrappers returns the wrapper letters on top of the node, sugar
// included, and the first node that is not printed as a wrapper.
func (a *AST) splitWrappers() (string, *AST) {
	var letters strings.Builder
	node := a
	for {
		switch {
		case node.fragment == FragWrapC &&
			(node.args[0].fragment == FragPkK ||
				node.args[0].fragment == FragPkH):

			// Printed as pk or pkh.
			return letters.String(), node

		case node.fragment.IsWrapper():
			letters.WriteString(node.fragment.String())
			node = node.args[0]

		case node.fragment == FragAndV &&
			node.args[1].fragment == FragTrue:

			letters.WriteString(f_wrap_t)
			node = node.args[0]

		case node.fragment == FragOrI &&
			node.args[0].fragment == FragFalse:

			letters.WriteString(f_wrap_l)
			node = node.args[1]

		case node.fragment == FragOrI &&
			node.args[1].fragment == FragFalse:

			letters.WriteString(f_wrap_u)
			node = node.args[0]

		default:
			return letters.String(), node
		}
	}
}

func (a *AST) writeString(w io.Writer) {
	letters, node := a.splitWrappers()
	if letters != "" {
		_, _ = fmt.Fprintf(w, "%s:", letters)
	}

	writeArgs := func(identifier string, args []*AST) {
		_, _ = fmt.Fprintf(w, "%s(", identifier)
		for i, arg := range args {
			if i > 0 {
				_, _ = io.WriteString(w, ",")
			}
			arg.writeString(w)
		}
		_, _ = io.WriteString(w, ")")
	}

	switch node.fragment {
	case FragWrapC:
		if node.args[0].fragment == FragPkK {
			_, _ = fmt.Fprintf(w, "%s(%s)", f_pk, node.args[0].name(0))
		} else {
			_, _ = fmt.Fprintf(w, "%s(%s)", f_pkh, node.args[0].name(0))
		}

	case FragAndOr:
		if node.args[2].fragment == FragFalse {
			writeArgs(f_and_n, node.args[:2])
			return
		}
		writeArgs(f_andor, node.args)

	case FragThresh:
		_, _ = fmt.Fprintf(w, "%s(%d,", f_thresh, node.k)
		for i, arg := range node.args {
			if i > 0 {
				_, _ = io.WriteString(w, ",")
			}
			arg.writeString(w)
		}
		_, _ = io.WriteString(w, ")")

	case FragAndV, FragAndB, FragOrB, FragOrC, FragOrD, FragOrI:
		writeArgs(node.fragment.String(), node.args)

	default:
		_, _ = io.WriteString(w, node.leafString())
	}
}

// leafString returns the text of a leaf or multi node.
func (a *AST) leafString() string {
	switch a.fragment {
	case FragFalse, FragTrue:
		return a.fragment.String()

	case FragOlder, FragAfter:
		return fmt.Sprintf("%s(%d)", a.fragment, a.k)

	case FragMulti:
		parts := []string{strconv.FormatUint(a.k, 10)}
		for i := range a.values {
			parts = append(parts, a.name(i))
		}
		return fmt.Sprintf("%s(%s)", a.fragment,
			strings.Join(parts, ","))

	case FragPkK, FragPkH, FragSha256, FragHash256, FragRipemd160,
		FragHash160:

		return fmt.Sprintf("%s(%s)", a.fragment, a.name(0))

	case FragThresh:
		return fmt.Sprintf("%s(%d)", a.fragment, a.k)
	}
	return a.fragment.String()
}

func (a *AST) drawTree(w io.Writer, indent string) {
	label := a.leafString()
	_, _ = fmt.Fprint(w, label)
	typ := a.formattedType()
	if a.props.canCollapseVerify {
		typ += "v"
	}
	if typ != "" {
		_, _ = fmt.Fprintf(w, " [%s]", typ)
	}
	_, _ = fmt.Fprintln(w)
	for i, arg := range a.args {
		mark := ""
		delim := ""
		if i == len(a.args)-1 {
			mark = "└──"
		} else {
			mark = "├──"
			delim = "|"
		}
		_, _ = fmt.Fprintf(w, "%s%s", indent, mark)
		padLen := len([]rune(arg.leafString())) + len([]rune(mark)) -
			1 - len(delim)
		if padLen < 0 {
			padLen = 0
		}
		padding := strings.Repeat(" ", padLen)
		arg.drawTree(w, indent+delim+padding)
	}
}

// DrawTree returns a multi-line drawing of the tree with the type of every
// node.
func (a *AST) DrawTree() string {
	var b strings.Builder
	a.drawTree(&b, "")
	return b.String()
}

// Clone returns a deep copy of the tree.
func (a *AST) Clone() *AST {
	c := *a
	c.names = append([]string(nil), a.names...)
	c.values = make([][]byte, len(a.values))
	for i, v := range a.values {
		if v != nil {
			c.values[i] = append([]byte(nil), v...)
		}
	}
	c.args = make([]*AST, len(a.args))
	for i, arg := range a.args {
		c.args[i] = arg.Clone()
	}
	return &c
}

// Equivalent returns whether two trees describe the same script structure.
// Keys of pk_h are compared by their hash, the children of thresh and multi
// are compared as sets, and and_v chains are compared after flattening.  An
// and_v that is the first child of a node whose script starts with the
// script of that child (c:, n:, v:, and_b, ...) is moved above the node.
// These are the differences that can not be told apart from the script bytes
// alone.
func (a *AST) Equivalent(b *AST) bool {
	return a.canonicalKey() == b.canonicalKey()
}

// canonicalKey returns a string that is equal for equivalent trees.
func (a *AST) canonicalKey() string {
	chain := a.canonicalChain()
	if len(chain) == 1 {
		return chain[0]
	}
	return fmt.Sprintf("%s(%s)", f_and_v, strings.Join(chain, ","))
}

// leftOpen returns whether the script of the node starts with the script of
// its first child.
func (a *AST) leftOpen() bool {
	switch a.fragment {
	case FragWrapC, FragWrapN, FragWrapV, FragAndB, FragOrB, FragOrC,
		FragOrD, FragAndOr, FragThresh:

		return true
	}
	return false
}

// canonicalChain returns the keys of the elements of the flattened and_v
// chain the node is equivalent to.
func (a *AST) canonicalChain() []string {
	switch {
	case a.fragment == FragAndV:
		return append(
			a.args[0].canonicalChain(), a.args[1].canonicalChain()...,
		)

	case a.leftOpen():
		first := a.args[0].canonicalChain()
		last := len(first) - 1
		return append(first[:last:last], a.nodeKey(first[last]))
	}
	return []string{a.nodeKey("")}
}

// nodeKey returns the key of the node.  For left open nodes, first is the key
// used for the first child.
func (a *AST) nodeKey(first string) string {
	valueHex := func(i int) string {
		if a.values[i] == nil {
			return "?" + a.names[i]
		}
		return hex.EncodeToString(a.values[i])
	}

	switch a.fragment {
	case FragFalse, FragTrue:
		return a.fragment.String()

	case FragOlder, FragAfter:
		return a.leafString()

	case FragPkH:
		if a.values[0] == nil {
			return fmt.Sprintf("%s(%s)", a.fragment, valueHex(0))
		}
		return fmt.Sprintf("%s(%x)", a.fragment, a.keyHash())

	case FragPkK, FragSha256, FragHash256, FragRipemd160, FragHash160:
		return fmt.Sprintf("%s(%s)", a.fragment, valueHex(0))

	case FragMulti:
		keys := make([]string, len(a.values))
		for i := range a.values {
			keys[i] = valueHex(i)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%s(%d,%s)", a.fragment, a.k,
			strings.Join(keys, ","))
	}

	subs := make([]string, len(a.args))
	for i, arg := range a.args {
		if i == 0 && a.leftOpen() {
			subs[i] = first
			continue
		}
		subs[i] = arg.canonicalKey()
	}
	if a.fragment == FragThresh {
		sort.Strings(subs)
		return fmt.Sprintf("%s(%d,%s)", a.fragment, a.k,
			strings.Join(subs, ","))
	}
	return fmt.Sprintf("%s(%s)", a.fragment, strings.Join(subs, ","))
}
