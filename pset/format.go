// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	btctxscript "github.com/btcsuite/btcd/txscript"
)

// SigHashAll is the sighash type assumed when an input does not request one.
const SigHashAll = btctxscript.SigHashAll

// sigHashNames lists the sighash types a PSET input may request.
var sigHashNames = []struct {
	name    string
	sigHash btctxscript.SigHashType
}{
	{"ALL", btctxscript.SigHashAll},
	{"NONE", btctxscript.SigHashNone},
	{"SINGLE", btctxscript.SigHashSingle},
	{"ALL|ANYONECANPAY", btctxscript.SigHashAll | btctxscript.SigHashAnyOneCanPay},
	{"NONE|ANYONECANPAY", btctxscript.SigHashNone | btctxscript.SigHashAnyOneCanPay},
	{"SINGLE|ANYONECANPAY", btctxscript.SigHashSingle | btctxscript.SigHashAnyOneCanPay},
}

// SigHashString returns the name of a sighash type, such as
// "ALL|ANYONECANPAY", or its number when it has none.
func SigHashString(sigHash btctxscript.SigHashType) string {
	for _, s := range sigHashNames {
		if s.sigHash == sigHash {
			return s.name
		}
	}
	return fmt.Sprintf("0x%x", uint32(sigHash))
}

// ParseSigHash returns the sighash type of a name returned by SigHashString.
func ParseSigHash(name string) (btctxscript.SigHashType, error) {
	names := make([]string, len(sigHashNames))
	for i, s := range sigHashNames {
		if s.name == strings.ToUpper(name) {
			return s.sigHash, nil
		}
		names[i] = s.name
	}
	return 0, fmt.Errorf("invalid sighash type %q, want one of %s", name,
		strings.Join(names, ", "))
}

// FormatPath returns a derivation path in the "m/84'/1'/0'/0/5" form.
func FormatPath(path []uint32) string {
	var b strings.Builder
	b.WriteString("m")
	for _, index := range path {
		b.WriteByte('/')
		if index >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(index-hdkeychain.HardenedKeyStart), 10))
			b.WriteByte('\'')
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(index), 10))
	}
	return b.String()
}

// ParsePath parses a derivation path.  Hardened steps are marked with ' or
// h; the leading "m" is optional.
func ParsePath(s string) ([]uint32, error) {
	steps := strings.Split(s, "/")
	if steps[0] == "m" {
		steps = steps[1:]
	}
	path := make([]uint32, 0, len(steps))
	for _, step := range steps {
		hardened := strings.HasSuffix(step, "'") ||
			strings.HasSuffix(step, "h")
		if hardened {
			step = step[:len(step)-1]
		}
		index, err := strconv.ParseUint(step, 10, 32)
		if err != nil || index >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("invalid derivation step %q in %q",
				step, s)
		}
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}
		path = append(path, uint32(index))
	}
	return path, nil
}
