// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// TxVersion is the current latest supported transaction version.
	TxVersion = 2

	// MaxTxInSequenceNum is the maximum sequence number the sequence field
	// of a transaction input can be.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// MaxPrevOutIndex is the maximum index the index field of a previous
	// outpoint can be.  It also marks coinbase inputs, whose index never
	// carries flags.
	MaxPrevOutIndex uint32 = 0xffffffff

	// OutPointIssuanceFlag is set in the serialized outpoint index of an
	// input that carries an asset issuance.
	OutPointIssuanceFlag uint32 = 1 << 31

	// OutPointPeginFlag is set in the serialized outpoint index of an
	// input that claims a peg-in.
	OutPointPeginFlag uint32 = 1 << 30

	// OutPointIndexMask extracts the real output index from a serialized
	// outpoint index.
	OutPointIndexMask uint32 = 0x3fffffff

	// SequenceLockTimeDisabled is a flag that if set on a transaction
	// input's sequence number, the sequence number will not be interpreted
	// as a relative locktime.
	SequenceLockTimeDisabled = 1 << 31

	// SequenceLockTimeIsSeconds is a flag that if set on a transaction
	// input's sequence number, the relative locktime has units of 512
	// seconds.
	SequenceLockTimeIsSeconds = 1 << 22

	// SequenceLockTimeMask is a mask that extracts the relative locktime
	// when masked against the transaction input sequence number.
	SequenceLockTimeMask = 0x0000ffff

	// WitnessScaleFactor determines the level of "discount" witness data
	// receives compared to "base" data.
	WitnessScaleFactor = 4
)

const (
	// defaultTxInOutAlloc is the default size used for the backing array
	// for transaction inputs and outputs.
	defaultTxInOutAlloc = 15

	// minTxInPayload is the minimum payload size for a transaction input.
	// PreviousOutPoint.Hash + PreviousOutPoint.Index 4 bytes + Varint for
	// SignatureScript length 1 byte + Sequence 4 bytes.
	minTxInPayload = 9 + chainhash.HashSize

	// maxTxInPerMessage is the maximum number of transactions inputs that
	// a transaction which fits into a message could possibly have.
	maxTxInPerMessage = (MaxMessagePayload / minTxInPayload) + 1

	// minTxOutPayload is the minimum payload size for a transaction output.
	// Asset 1 byte + Value 1 byte + Nonce 1 byte + Varint for PkScript
	// length 1 byte.
	minTxOutPayload = 4

	// maxTxOutPerMessage is the maximum number of transactions outputs that
	// a transaction which fits into a message could possibly have.
	maxTxOutPerMessage = (MaxMessagePayload / minTxOutPayload) + 1

	// maxWitnessItemsPerInput is the maximum number of witness items to
	// be read for the witness data for a single TxIn.
	maxWitnessItemsPerInput = 4_000_000
)

// OutPoint defines an Elements data type that is used to track previous
// transaction outputs.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new transaction outpoint point with the provided
// hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{
		Hash:  *hash,
		Index: index,
	}
}

// String returns the OutPoint in the human-readable form "hash:index".
func (o OutPoint) String() string {
	// Allocate enough for hash string, colon, and 10 digits.
	buf := make([]byte, 2*chainhash.HashSize+1, 2*chainhash.HashSize+1+10)
	copy(buf, o.Hash.String())
	buf[2*chainhash.HashSize] = ':'
	buf = strconv.AppendUint(buf, uint64(o.Index), 10)
	return string(buf)
}

// AssetIssuance describes the issuance or reissuance of an asset attached to
// a transaction input.
type AssetIssuance struct {
	// AssetBlindingNonce is zero for a new issuance and the blinding
	// factor of the reissuance token for a reissuance.
	AssetBlindingNonce [32]byte

	// AssetEntropy is the contract hash for a new issuance and the asset
	// entropy for a reissuance.
	AssetEntropy [32]byte

	// Amount is the amount of the asset issued.
	Amount ConfidentialValue

	// InflationKeys is the amount of reissuance tokens issued.
	InflationKeys ConfidentialValue
}

// IsReissuance returns whether the issuance re-issues an existing asset.
func (i *AssetIssuance) IsReissuance() bool {
	return i.AssetBlindingNonce != [32]byte{}
}

// SerializeSize returns the number of bytes it would take to serialize the
// issuance.
func (i *AssetIssuance) SerializeSize() int {
	return 64 + i.Amount.SerializeSize() + i.InflationKeys.SerializeSize()
}

// TxWitness defines the witness stack of a TxIn.  Each element is pushed
// onto the stack as a data push.
type TxWitness [][]byte

// SerializeSize returns the number of bytes it would take to serialize the
// witness stack.
func (t TxWitness) SerializeSize() int {
	n := VarIntSerializeSize(uint64(len(t)))
	for _, item := range t {
		n += varBytesSerializeSize(item)
	}
	return n
}

// ToHexStrings formats the witness stack as a slice of hex-encoded strings.
func (t TxWitness) ToHexStrings() []string {
	result := make([]string, len(t))
	for i, wit := range t {
		result[i] = fmt.Sprintf("%x", wit)
	}
	return result
}

// TxIn defines an Elements transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	IsPegin          bool
	Issuance         *AssetIssuance
	SignatureScript  []byte
	Sequence         uint32

	// Witness data.
	IssuanceRangeProof      []byte
	InflationKeysRangeProof []byte
	Witness                 TxWitness
	PeginWitness            TxWitness
}

// NewTxIn returns a new transaction input with the provided previous outpoint
// and signature script with a default sequence of MaxTxInSequenceNum.
func NewTxIn(prevOut *OutPoint, signatureScript []byte, witness TxWitness) *TxIn {
	return &TxIn{
		PreviousOutPoint: *prevOut,
		SignatureScript:  signatureScript,
		Witness:          witness,
		Sequence:         MaxTxInSequenceNum,
	}
}

// HasWitness returns whether any of the input's witness fields are set.
func (t *TxIn) HasWitness() bool {
	return len(t.IssuanceRangeProof) > 0 ||
		len(t.InflationKeysRangeProof) > 0 || len(t.Witness) > 0 ||
		len(t.PeginWitness) > 0
}

// serializedIndex returns the outpoint index with the issuance and pegin
// flags applied.
func (t *TxIn) serializedIndex() (uint32, error) {
	index := t.PreviousOutPoint.Index
	if index == MaxPrevOutIndex {
		if t.Issuance != nil || t.IsPegin {
			return 0, errors.New("coinbase outpoint index can not " +
				"carry issuance or pegin flags")
		}
		return index, nil
	}
	if index&^OutPointIndexMask != 0 {
		return 0, fmt.Errorf("outpoint index %d exceeds the maximum "+
			"of %d", index, OutPointIndexMask)
	}
	if t.Issuance != nil {
		index |= OutPointIssuanceFlag
	}
	if t.IsPegin {
		index |= OutPointPeginFlag
	}
	return index, nil
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction input without its witness.
func (t *TxIn) SerializeSize() int {
	// Outpoint Hash 32 bytes + Outpoint Index 4 bytes + Sequence 4 bytes +
	// serialized varint size for the length of SignatureScript +
	// SignatureScript bytes.
	n := 40 + varBytesSerializeSize(t.SignatureScript)
	if t.Issuance != nil {
		n += t.Issuance.SerializeSize()
	}
	return n
}

// witnessSerializeSize returns the number of bytes it would take to
// serialize the witness of the input.
func (t *TxIn) witnessSerializeSize() int {
	return varBytesSerializeSize(t.IssuanceRangeProof) +
		varBytesSerializeSize(t.InflationKeysRangeProof) +
		t.Witness.SerializeSize() + t.PeginWitness.SerializeSize()
}

// TxOut defines an Elements transaction output.
type TxOut struct {
	Asset    ConfidentialAsset
	Value    ConfidentialValue
	Nonce    ConfidentialNonce
	PkScript []byte

	// Witness data.
	SurjectionProof []byte
	RangeProof      []byte
}

// NewTxOut returns a new explicit transaction output with the provided asset,
// value and public key script.
func NewTxOut(asset chainhash.Hash, value uint64, pkScript []byte) *TxOut {
	return &TxOut{
		Asset:    NewExplicitAsset(asset),
		Value:    NewExplicitValue(value),
		PkScript: pkScript,
	}
}

// HasWitness returns whether the output carries proofs.
func (t *TxOut) HasWitness() bool {
	return len(t.SurjectionProof) > 0 || len(t.RangeProof) > 0
}

// IsExplicit returns whether the output uses the explicit value and asset
// form.
func (t *TxOut) IsExplicit() bool {
	return t.Asset.IsExplicit() && t.Value.IsExplicit()
}

// IsConfidential returns whether the output uses the commitment form.
func (t *TxOut) IsConfidential() bool {
	return t.Asset.Type == ConfidentialCommitment &&
		t.Value.Type == ConfidentialCommitment
}

// IsFee returns whether the output is an explicit fee output, which has an
// empty public key script.
func (t *TxOut) IsFee() bool {
	return len(t.PkScript) == 0 && t.IsExplicit()
}

// CheckForm verifies that the output carries exactly one of the explicit or
// the confidential forms, and that proofs only accompany the latter.
func (t *TxOut) CheckForm() error {
	if err := t.checkPrefixForm(); err != nil {
		return err
	}
	if t.IsExplicit() && t.HasWitness() {
		return errors.New("explicit output can not carry a range or " +
			"surjection proof")
	}
	return nil
}

// checkPrefixForm verifies the value and asset encodings agree.
func (t *TxOut) checkPrefixForm() error {
	if t.IsExplicit() || t.IsConfidential() {
		return nil
	}
	return fmt.Errorf("output must carry an explicit value and asset or "+
		"a value and asset commitment, got %s value and %s asset",
		t.Value.Type, t.Asset.Type)
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction output without its witness.
func (t *TxOut) SerializeSize() int {
	return t.Asset.SerializeSize() + t.Value.SerializeSize() +
		t.Nonce.SerializeSize() + varBytesSerializeSize(t.PkScript)
}

// witnessSerializeSize returns the number of bytes it would take to
// serialize the proofs of the output.
func (t *TxOut) witnessSerializeSize() int {
	return varBytesSerializeSize(t.SurjectionProof) +
		varBytesSerializeSize(t.RangeProof)
}

// Serialize encodes the output without its witness, which is the form used
// when an output is committed to on its own.
func (t *TxOut) Serialize(w io.Writer) error {
	if err := t.Asset.Serialize(w); err != nil {
		return err
	}
	if err := t.Value.Serialize(w); err != nil {
		return err
	}
	if err := t.Nonce.Serialize(w); err != nil {
		return err
	}
	return WriteVarBytes(w, t.PkScript)
}

// Deserialize decodes an output without its witness from r.
func (t *TxOut) Deserialize(r io.Reader) error {
	or := newOffsetReader(r)
	start := or.offset
	if err := readTxOut(or, t); err != nil {
		return err
	}
	if err := t.checkPrefixForm(); err != nil {
		return decodeError(ErrMalformedField, start, "txout",
			err.Error())
	}
	return nil
}

// FromBytes decodes an output that must span all of b.
func (t *TxOut) FromBytes(b []byte) error {
	return decodeExact(b, "txout", t.Deserialize)
}

// MsgTx implements an Elements transaction.
type MsgTx struct {
	Version  uint32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// NewMsgTx returns a new transaction with no inputs or outputs.
func NewMsgTx(version uint32) *MsgTx {
	return &MsgTx{
		Version: version,
		TxIn:    make([]*TxIn, 0, defaultTxInOutAlloc),
		TxOut:   make([]*TxOut, 0, defaultTxInOutAlloc),
	}
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// HasWitness returns false if none of the inputs or outputs within the
// transaction contain witness data, true otherwise.
func (msg *MsgTx) HasWitness() bool {
	for _, txIn := range msg.TxIn {
		if txIn.HasWitness() {
			return true
		}
	}
	for _, txOut := range msg.TxOut {
		if txOut.HasWitness() {
			return true
		}
	}
	return false
}

// IsCoinBase determines whether or not the transaction is a coinbase.  A
// coinbase is a special transaction created by miners that has exactly one
// input with a zero previous hash and a maximum index.
func (msg *MsgTx) IsCoinBase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	prevOut := &msg.TxIn[0].PreviousOutPoint
	return prevOut.Index == MaxPrevOutIndex &&
		prevOut.Hash == (chainhash.Hash{})
}

// TxHash generates the hash for the transaction without its witness.
func (msg *MsgTx) TxHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSizeStripped()))
	_ = msg.SerializeNoWitness(buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// WitnessHash generates the hash of the transaction serialized with its
// witness.  If the transaction does not have any witness data, the hash is
// the same as its TxHash.
func (msg *MsgTx) WitnessHash() chainhash.Hash {
	if !msg.HasWitness() {
		return msg.TxHash()
	}
	buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSize()))
	_ = msg.Serialize(buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Fees sums the explicit fee outputs of the transaction by asset.
func (msg *MsgTx) Fees() map[chainhash.Hash]uint64 {
	fees := make(map[chainhash.Hash]uint64)
	for _, txOut := range msg.TxOut {
		if txOut.IsFee() {
			fees[txOut.Asset.ID] += txOut.Value.Value
		}
	}
	return fees
}

// Copy creates a deep copy of a transaction so that the original does not get
// modified when the copy is manipulated.
func (msg *MsgTx) Copy() *MsgTx {
	newTx := MsgTx{
		Version:  msg.Version,
		TxIn:     make([]*TxIn, 0, len(msg.TxIn)),
		TxOut:    make([]*TxOut, 0, len(msg.TxOut)),
		LockTime: msg.LockTime,
	}

	for _, oldTxIn := range msg.TxIn {
		newTxIn := *oldTxIn
		if oldTxIn.Issuance != nil {
			issuance := *oldTxIn.Issuance
			newTxIn.Issuance = &issuance
		}
		newTxIn.SignatureScript = copyBytes(oldTxIn.SignatureScript)
		newTxIn.IssuanceRangeProof = copyBytes(oldTxIn.IssuanceRangeProof)
		newTxIn.InflationKeysRangeProof = copyBytes(
			oldTxIn.InflationKeysRangeProof,
		)
		newTxIn.Witness = copyWitness(oldTxIn.Witness)
		newTxIn.PeginWitness = copyWitness(oldTxIn.PeginWitness)
		newTx.TxIn = append(newTx.TxIn, &newTxIn)
	}

	for _, oldTxOut := range msg.TxOut {
		newTxOut := *oldTxOut
		newTxOut.PkScript = copyBytes(oldTxOut.PkScript)
		newTxOut.SurjectionProof = copyBytes(oldTxOut.SurjectionProof)
		newTxOut.RangeProof = copyBytes(oldTxOut.RangeProof)
		newTx.TxOut = append(newTx.TxOut, &newTxOut)
	}

	return &newTx
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func copyWitness(w TxWitness) TxWitness {
	if w == nil {
		return nil
	}
	newWitness := make(TxWitness, len(w))
	for i, item := range w {
		newWitness[i] = copyBytes(item)
	}
	return newWitness
}

// withIndex prefixes the field of a decode error with the position of the
// input or output being decoded.
func withIndex(err error, kind string, i uint64) error {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		decodeErr.Field = fmt.Sprintf("%s[%d].%s", kind, i,
			decodeErr.Field)
	}
	return err
}

// readTxIn reads the next sequence of bytes from r as a transaction input,
// without its witness.
func readTxIn(r *offsetReader, ti *TxIn) error {
	if err := readHash(r, "prevout.hash", &ti.PreviousOutPoint.Hash); err != nil {
		return err
	}
	index, err := readUint32(r, "prevout.index")
	if err != nil {
		return err
	}

	// The flags are only meaningful for non-coinbase inputs.
	hasIssuance := false
	if index != MaxPrevOutIndex {
		hasIssuance = index&OutPointIssuanceFlag != 0
		ti.IsPegin = index&OutPointPeginFlag != 0
		index &= OutPointIndexMask
	}
	ti.PreviousOutPoint.Index = index

	ti.SignatureScript, err = readVarBytes(r, MaxMessagePayload, "script_sig")
	if err != nil {
		return err
	}
	ti.Sequence, err = readUint32(r, "sequence")
	if err != nil {
		return err
	}

	if !hasIssuance {
		return nil
	}
	issuance := &AssetIssuance{}
	err = readFull(r, "issuance.asset_blinding_nonce",
		issuance.AssetBlindingNonce[:])
	if err != nil {
		return err
	}
	err = readFull(r, "issuance.asset_entropy", issuance.AssetEntropy[:])
	if err != nil {
		return err
	}
	err = readConfidentialValue(r, "issuance.amount", &issuance.Amount)
	if err != nil {
		return err
	}
	err = readConfidentialValue(r, "issuance.inflation_keys",
		&issuance.InflationKeys)
	if err != nil {
		return err
	}
	ti.Issuance = issuance
	return nil
}

// readTxInWitness reads the witness of a transaction input.
func readTxInWitness(r *offsetReader, ti *TxIn) error {
	var err error
	ti.IssuanceRangeProof, err = readVarBytes(r, MaxMessagePayload,
		"witness.issuance_amount_rangeproof")
	if err != nil {
		return err
	}
	ti.InflationKeysRangeProof, err = readVarBytes(r, MaxMessagePayload,
		"witness.inflation_keys_rangeproof")
	if err != nil {
		return err
	}
	ti.Witness, err = readWitnessStack(r, "witness.script_witness")
	if err != nil {
		return err
	}
	ti.PeginWitness, err = readWitnessStack(r, "witness.pegin_witness")
	return err
}

// readTxOut reads the next sequence of bytes from r as a transaction output,
// without its witness.
func readTxOut(r *offsetReader, to *TxOut) error {
	if err := readConfidentialAsset(r, "asset", &to.Asset); err != nil {
		return err
	}
	if err := readConfidentialValue(r, "value", &to.Value); err != nil {
		return err
	}
	if err := readConfidentialNonce(r, "nonce", &to.Nonce); err != nil {
		return err
	}
	var err error
	to.PkScript, err = readVarBytes(r, MaxMessagePayload, "script_pubkey")
	return err
}

// readTxOutWitness reads the proofs of a transaction output.
func readTxOutWitness(r *offsetReader, to *TxOut) error {
	var err error
	to.SurjectionProof, err = readVarBytes(r, MaxMessagePayload,
		"witness.surjection_proof")
	if err != nil {
		return err
	}
	to.RangeProof, err = readVarBytes(r, MaxMessagePayload,
		"witness.rangeproof")
	return err
}

// Deserialize decodes a transaction from r into the receiver.  Bytes
// following the transaction are left unread.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	return msg.decode(newOffsetReader(r))
}

// FromBytes decodes a transaction that must span all of b.
func (msg *MsgTx) FromBytes(b []byte) error {
	return decodeExact(b, "tx", msg.Deserialize)
}

func (msg *MsgTx) decode(r *offsetReader) error {
	var err error
	msg.Version, err = readUint32(r, "version")
	if err != nil {
		return err
	}

	flagOffset := r.offset
	flag, err := readUint8(r, "flag")
	if err != nil {
		return err
	}
	if flag > 1 {
		str := fmt.Sprintf("witness flag must be 0 or 1, got %d", flag)
		return decodeError(ErrMalformedField, flagOffset, "flag", str)
	}

	countOffset := r.offset
	count, err := readVarInt(r, "input count")
	if err != nil {
		return err
	}

	// Prevent more input transactions than could possibly fit into a
	// message.  It would be possible to cause memory exhaustion and panics
	// without a sane upper bound on this count.
	if count > uint64(maxTxInPerMessage) {
		str := fmt.Sprintf("too many input transactions to fit into "+
			"max message size [count %d, max %d]", count,
			maxTxInPerMessage)
		return decodeError(ErrMalformedField, countOffset,
			"input count", str)
	}
	err = checkCount(r, countOffset, count, minTxInPayload, "input count")
	if err != nil {
		return err
	}

	txIns := make([]TxIn, count)
	msg.TxIn = make([]*TxIn, count)
	for i := uint64(0); i < count; i++ {
		ti := &txIns[i]
		msg.TxIn[i] = ti
		if err := readTxIn(r, ti); err != nil {
			return withIndex(err, "input", i)
		}
	}

	countOffset = r.offset
	count, err = readVarInt(r, "output count")
	if err != nil {
		return err
	}
	if count > uint64(maxTxOutPerMessage) {
		str := fmt.Sprintf("too many output transactions to fit into "+
			"max message size [count %d, max %d]", count,
			maxTxOutPerMessage)
		return decodeError(ErrMalformedField, countOffset,
			"output count", str)
	}
	err = checkCount(r, countOffset, count, minTxOutPayload,
		"output count")
	if err != nil {
		return err
	}

	txOuts := make([]TxOut, count)
	outOffsets := make([]int, count)
	msg.TxOut = make([]*TxOut, count)
	for i := uint64(0); i < count; i++ {
		to := &txOuts[i]
		msg.TxOut[i] = to
		outOffsets[i] = r.offset
		if err := readTxOut(r, to); err != nil {
			return withIndex(err, "output", i)
		}
		if err := to.checkPrefixForm(); err != nil {
			return decodeError(ErrMalformedField, outOffsets[i],
				fmt.Sprintf("output[%d]", i), err.Error())
		}
	}

	msg.LockTime, err = readUint32(r, "locktime")
	if err != nil {
		return err
	}

	if flag == 0 {
		return nil
	}

	for i, ti := range msg.TxIn {
		if err := readTxInWitness(r, ti); err != nil {
			return withIndex(err, "input", uint64(i))
		}
	}
	for i, to := range msg.TxOut {
		if err := readTxOutWitness(r, to); err != nil {
			return withIndex(err, "output", uint64(i))
		}
		if err := to.CheckForm(); err != nil {
			return decodeError(ErrMalformedField, outOffsets[i],
				fmt.Sprintf("output[%d]", i), err.Error())
		}
	}

	// A set flag with nothing behind it would not survive re-encoding.
	if !msg.HasWitness() {
		return decodeError(ErrMalformedField, flagOffset, "flag",
			"witness flag set but no witness data present")
	}

	log.Tracef("Decoded transaction with %d inputs and %d outputs (%d "+
		"bytes)", len(msg.TxIn), len(msg.TxOut), r.offset)
	return nil
}

// decodeExact runs a decoder over b and fails with ErrTrailingBytes if it
// does not consume every byte.
func decodeExact(b []byte, field string, decode func(io.Reader) error) error {
	r := newOffsetReader(bytes.NewReader(b))
	if err := decode(r); err != nil {
		return err
	}
	if r.offset != len(b) {
		str := fmt.Sprintf("%d unexpected bytes after %s",
			len(b)-r.offset, field)
		return decodeError(ErrTrailingBytes, r.offset, field, str)
	}
	return nil
}

// writeTxIn encodes ti to w without its witness.
func writeTxIn(w io.Writer, ti *TxIn) error {
	index, err := ti.serializedIndex()
	if err != nil {
		return err
	}
	if _, err := w.Write(ti.PreviousOutPoint.Hash[:]); err != nil {
		return err
	}
	if err := writeUint32(w, index); err != nil {
		return err
	}
	if err := WriteVarBytes(w, ti.SignatureScript); err != nil {
		return err
	}
	if err := writeUint32(w, ti.Sequence); err != nil {
		return err
	}
	if ti.Issuance == nil {
		return nil
	}
	if _, err := w.Write(ti.Issuance.AssetBlindingNonce[:]); err != nil {
		return err
	}
	if _, err := w.Write(ti.Issuance.AssetEntropy[:]); err != nil {
		return err
	}
	if err := ti.Issuance.Amount.Serialize(w); err != nil {
		return err
	}
	return ti.Issuance.InflationKeys.Serialize(w)
}

// writeWitnessStack encodes a count-prefixed list of witness items.
func writeWitnessStack(w io.Writer, witness TxWitness) error {
	if err := WriteVarInt(w, uint64(len(witness))); err != nil {
		return err
	}
	for _, item := range witness {
		if err := WriteVarBytes(w, item); err != nil {
			return err
		}
	}
	return nil
}

// writeTxInWitness encodes the witness of ti to w.
func writeTxInWitness(w io.Writer, ti *TxIn) error {
	if err := WriteVarBytes(w, ti.IssuanceRangeProof); err != nil {
		return err
	}
	if err := WriteVarBytes(w, ti.InflationKeysRangeProof); err != nil {
		return err
	}
	if err := writeWitnessStack(w, ti.Witness); err != nil {
		return err
	}
	return writeWitnessStack(w, ti.PeginWitness)
}

// encode serializes the transaction, including the witness section when
// withWitness is set and the transaction has one.
func (msg *MsgTx) encode(w io.Writer, withWitness bool) error {
	if err := writeUint32(w, msg.Version); err != nil {
		return err
	}

	var flag byte
	if withWitness && msg.HasWitness() {
		flag = 1
	}
	if _, err := w.Write([]byte{flag}); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeTxIn(w, ti); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := to.Serialize(w); err != nil {
			return err
		}
	}

	if err := writeUint32(w, msg.LockTime); err != nil {
		return err
	}

	if flag == 0 {
		return nil
	}
	for _, ti := range msg.TxIn {
		if err := writeTxInWitness(w, ti); err != nil {
			return err
		}
	}
	for _, to := range msg.TxOut {
		if err := WriteVarBytes(w, to.SurjectionProof); err != nil {
			return err
		}
		if err := WriteVarBytes(w, to.RangeProof); err != nil {
			return err
		}
	}
	return nil
}

// Serialize encodes the transaction to w, including its witness when it has
// one.
func (msg *MsgTx) Serialize(w io.Writer) error {
	return msg.encode(w, true)
}

// SerializeNoWitness encodes the transaction to w without its witness, which
// is the form hashed for the transaction id.
func (msg *MsgTx) SerializeNoWitness(w io.Writer) error {
	return msg.encode(w, false)
}

// Bytes returns the serialized transaction.
func (msg *MsgTx) Bytes() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSize()))
	if err := msg.Serialize(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeSizeStripped returns the number of bytes it would take to
// serialize the transaction without its witness.
func (msg *MsgTx) SerializeSizeStripped() int {
	// Version 4 bytes + Flag 1 byte + LockTime 4 bytes + Serialized varint
	// size for the number of transaction inputs and outputs.
	n := 9 + VarIntSerializeSize(uint64(len(msg.TxIn))) +
		VarIntSerializeSize(uint64(len(msg.TxOut)))
	for _, txIn := range msg.TxIn {
		n += txIn.SerializeSize()
	}
	for _, txOut := range msg.TxOut {
		n += txOut.SerializeSize()
	}
	return n
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction, including its witness when it has one.
func (msg *MsgTx) SerializeSize() int {
	n := msg.SerializeSizeStripped()
	if !msg.HasWitness() {
		return n
	}
	for _, txIn := range msg.TxIn {
		n += txIn.witnessSerializeSize()
	}
	for _, txOut := range msg.TxOut {
		n += txOut.witnessSerializeSize()
	}
	return n
}

// Weight returns the transaction weight: the stripped size counts
// WitnessScaleFactor times, witness bytes once.
func (msg *MsgTx) Weight() int {
	baseSize := msg.SerializeSizeStripped()
	totalSize := msg.SerializeSize()
	return baseSize*(WitnessScaleFactor-1) + totalSize
}

// VirtualSize returns the weight divided by WitnessScaleFactor, rounded up.
func (msg *MsgTx) VirtualSize() int {
	return (msg.Weight() + WitnessScaleFactor - 1) / WitnessScaleFactor
}
