// Package chaintypes holds the data model of spec.md §3: Block, Header,
// Body, TransactionId and the minimal transaction-variant surface the core
// consumes (validate / execute / getId / getSize / getUserId /
// validateSignatures / getType). The concrete transaction hierarchy is an
// external collaborator per spec.md §1 ("just its ... surface"); rather
// than a virtual-class hierarchy we use a tagged variant keyed on the
// 1-byte type tag, per Design Notes §9, modeled on the teacher's
// tx_internal_data_*.go dispatch-by-type pattern.
package chaintypes

import (
	"bytes"
	"encoding/binary"

	"github.com/corechain/node/cryptoutil"
)

// TxType is the 1-byte tag selecting a transaction variant.
type TxType byte

const (
	TxTypeInit     TxType = 0x00
	TxTypeCommit   TxType = 0x01
	TxTypeTransfer TxType = 0x02
)

// MinerID identifies a miner/signing identity; 20 bytes, matching the
// teacher's common.Address width.
type MinerID [20]byte

func (m MinerID) Bytes() []byte { return m[:] }

func (m MinerID) String() string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 2*len(m))
	for i, b := range m {
		out[2*i] = hexDigits[b>>4]
		out[2*i+1] = hexDigits[b&0xf]
	}
	return string(out)
}

// MinerIDFromPublicKey derives a MinerID from an ed25519 public key by
// truncating its hash to 20 bytes, the same "address = hash(pubkey)[:20]"
// shape the teacher's crypto.PubkeyToAddress uses.
func MinerIDFromPublicKey(pub cryptoutil.PublicKey) MinerID {
	h := cryptoutil.Hash256(pub)
	var id MinerID
	copy(id[:], h[:20])
	return id
}

// TransactionId is the 50-byte identifier from spec.md §3: 1 type byte, 4
// blockId bytes, 2 size bytes, 32 content-hash bytes, and an 11-byte
// internal discriminator (a per-submission nonce disambiguating two
// otherwise-identical transactions, e.g. a resubmitted InitTransaction).
// Ordering is (type, blockId, size, hash) lexicographic -- the
// discriminator does not participate in ordering or equality of the
// addressed transaction, only in byte-identity of the id itself.
type TransactionId struct {
	Type          TxType
	BlockId       uint32
	Size          uint16
	Hash          [32]byte
	Discriminator [11]byte
}

const TransactionIdSize = 1 + 4 + 2 + 32 + 11

// Bytes serializes the id to its fixed 50-byte wire form.
func (id TransactionId) Bytes() [TransactionIdSize]byte {
	var out [TransactionIdSize]byte
	out[0] = byte(id.Type)
	binary.LittleEndian.PutUint32(out[1:5], id.BlockId)
	binary.LittleEndian.PutUint16(out[5:7], id.Size)
	copy(out[7:39], id.Hash[:])
	copy(out[39:50], id.Discriminator[:])
	return out
}

// TransactionIdFromBytes parses a 50-byte id.
func TransactionIdFromBytes(b []byte) (TransactionId, bool) {
	if len(b) != TransactionIdSize {
		return TransactionId{}, false
	}
	var id TransactionId
	id.Type = TxType(b[0])
	id.BlockId = binary.LittleEndian.Uint32(b[1:5])
	id.Size = binary.LittleEndian.Uint16(b[5:7])
	copy(id.Hash[:], b[7:39])
	copy(id.Discriminator[:], b[39:50])
	return id, true
}

// Less implements the (type, blockId, size, hash) lexicographic ordering
// spec.md §3 specifies.
func (id TransactionId) Less(other TransactionId) bool {
	if id.Type != other.Type {
		return id.Type < other.Type
	}
	if id.BlockId != other.BlockId {
		return id.BlockId < other.BlockId
	}
	if id.Size != other.Size {
		return id.Size < other.Size
	}
	return bytes.Compare(id.Hash[:], other.Hash[:]) < 0
}

// Key is a comparable map key covering everything but the discriminator,
// so two deliveries of "the same" transaction collide in maps even if they
// carry different discriminators (e.g. a locally-built reward tx and the
// identical one gossiped back by a peer).
type Key [1 + 4 + 2 + 32]byte

func (id TransactionId) Key() Key {
	var k Key
	k[0] = byte(id.Type)
	binary.LittleEndian.PutUint32(k[1:5], id.BlockId)
	binary.LittleEndian.PutUint16(k[5:7], id.Size)
	copy(k[7:39], id.Hash[:])
	return k
}
