package chaintypes

import (
	"encoding/binary"

	"github.com/corechain/node/cryptoutil"
)

// Header is the immutable block header from spec.md §3. NextMiners holds
// 1-240 entries; len(NextMiners)-1 (SkippedBlocks) is the number of
// scheduling slots skipped between this block and its child, so a child's
// id is this block's id + SkippedBlocks() + 1 (§4.4).
type Header struct {
	Version       byte
	Id            uint32
	Depth         uint32
	PrevHash      [32]byte
	BodyHash      [32]byte
	MinerId       MinerID
	NextMiners    []MinerID
	SignerKey     cryptoutil.PublicKey
	Signature     [cryptoutil.SignatureSize]byte
}

// SkippedBlocks returns len(NextMiners)-1, the number of scheduling slots
// this header's producer chose to skip before the next block (spec.md §3
// GLOSSARY: "Skipped blocks").
func (h *Header) SkippedBlocks() int {
	if len(h.NextMiners) == 0 {
		return 0
	}
	return len(h.NextMiners) - 1
}

// signingBytes returns the header bytes the ed25519 signature covers --
// everything except the signature field itself (spec.md §3).
func (h *Header) signingBytes() []byte {
	buf := make([]byte, 0, 1+4+4+32+32+20+2+len(h.NextMiners)*20+cryptoutil.PublicKeySize)
	buf = append(buf, h.Version)
	buf = appendU32(buf, h.Id)
	buf = appendU32(buf, h.Depth)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.BodyHash[:]...)
	buf = append(buf, h.MinerId[:]...)
	buf = appendU16(buf, uint16(len(h.NextMiners)))
	for _, m := range h.NextMiners {
		buf = append(buf, m[:]...)
	}
	buf = append(buf, h.SignerKey...)
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Sign computes and stores the header's signature.
func (h *Header) Sign(priv cryptoutil.PrivateKey) {
	sig := cryptoutil.Sign(priv, h.signingBytes())
	copy(h.Signature[:], sig)
}

// VerifySignature reports whether the header's signature matches SignerKey.
func (h *Header) VerifySignature() bool {
	return cryptoutil.Verify(h.SignerKey, h.signingBytes(), h.Signature[:])
}

// Hash returns the header's content hash, used as its identity throughout
// the BlockTree (header-hash keyed maps) and as PrevHash of its children.
func (h *Header) Hash() [32]byte {
	return cryptoutil.Hash256(h.signingBytes(), h.Signature[:])
}
