// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txscript implements the Elements specific parts of script handling.

The opcode set, the script builder and the tokenizer are shared with Bitcoin
and come from the btcd txscript package.  This package adds what differs on an
Elements chain:

# Script Classes

Elements outputs use the same standard templates as Bitcoin, plus two classes
of their own.  An output with an empty public key script is an explicit fee
output, and an OP_RETURN output that commits to the genesis hash of the parent
chain followed by a parent chain script is a pegout.  GetScriptClass recognizes
both.

# Pegouts

PegoutScript builds the public key script of a pegout and ExtractPegoutData
parses one back.  The parent chain address of a pegout is derived with the
parent chain parameters.

# Errors

Errors returned by this package are of type txscript.Error and carry an
ErrorCode that can be matched with errors.Is.
*/
package txscript
