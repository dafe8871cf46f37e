// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"strings"
)

const (
	inputCharset = "0123456789()[],'/*abcdefgh@:$%{}" +
		"IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~" +
		"ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "
	checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
	checksumLen     = 8
)

var checksumGen = [5]uint64{
	0xf5dee51989, 0xa9fdca3312, 0x1bab10e32d, 0x3706b1677a, 0x644d626ffd,
}

func polymod(c uint64, val int) uint64 {
	top := c >> 35
	c = (c&0x7ffffffff)<<5 ^ uint64(val)
	for i, g := range checksumGen {
		if (top>>uint(i))&1 == 1 {
			c ^= g
		}
	}
	return c
}

// Checksum returns the eight character checksum of a descriptor without its
// '#' suffix.  It fails for characters outside the descriptor charset.
func Checksum(desc string) (string, error) {
	c := uint64(1)
	cls, clsCount := 0, 0
	for i := 0; i < len(desc); i++ {
		pos := strings.IndexByte(inputCharset, desc[i])
		if pos < 0 {
			return "", descriptorError(ErrInvalidDescriptor,
				"invalid character %q at position %d", desc[i], i)
		}
		// The low bits are fed directly, the groups of three high
		// bits every three characters.
		c = polymod(c, pos&31)
		cls = cls*3 + pos>>5
		clsCount++
		if clsCount == 3 {
			c = polymod(c, cls)
			cls, clsCount = 0, 0
		}
	}
	if clsCount > 0 {
		c = polymod(c, cls)
	}
	for i := 0; i < checksumLen; i++ {
		c = polymod(c, 0)
	}
	c ^= 1

	var sum [checksumLen]byte
	for i := range sum {
		sum[i] = checksumCharset[(c>>(5*uint(7-i)))&31]
	}
	return string(sum[:]), nil
}

// splitChecksum separates and verifies the optional checksum of a
// descriptor.
func splitChecksum(desc string) (string, error) {
	hash := strings.LastIndexByte(desc, '#')
	if hash < 0 {
		return desc, nil
	}

	body, sum := desc[:hash], desc[hash+1:]
	if len(sum) != checksumLen {
		return "", descriptorError(ErrInvalidChecksum, "checksum %q "+
			"must be %d characters", sum, checksumLen)
	}
	want, err := Checksum(body)
	if err != nil {
		return "", err
	}
	if sum != want {
		return "", descriptorError(ErrInvalidChecksum, "checksum %s "+
			"does not match, expected %s", sum, want)
	}
	return body, nil
}
