// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package pset implements partially signed Elements transactions, the Elements
flavour of PSBT version 2.

A PSET carries an unsigned transaction as a set of key-value maps, one global
map and one map per input and output, together with the data signers and
finalizers need: the spent outputs, scripts, key origins, partial signatures
and hash preimages.  Elements adds confidential values, asset issuances and
peg-ins under proprietary keys with the "pset" identifier.

The package covers the roles of a keyless tool: New creates a PSET from an
unsigned transaction, NewFromRawBytes decodes one, Merge combines the work of
several signers, Finalize builds the final scripts of an input from its
partial signatures and Extract returns the network transaction.  Script
spends are finalized through miniscript satisfaction.  Signing and blinding
need private keys and are left to wallets.
*/
package pset
