package chaintypes

import (
	"encoding/binary"

	"github.com/corechain/node/cryptoutil"
)

// Body is the block body from spec.md §3: version/maxVersion bytes, a
// transaction count and total size, and the list of chunk hashes.
type Body struct {
	Version             byte
	MaxSupportedVersion byte
	TransactionCount    uint32
	TransactionsSize    uint64
	ChunkHashes         [][32]byte
}

func (b *Body) bytes() []byte {
	buf := make([]byte, 0, 2+4+8+4+len(b.ChunkHashes)*32)
	buf = append(buf, b.Version, b.MaxSupportedVersion)
	buf = appendU32(buf, b.TransactionCount)
	var sz [8]byte
	binary.LittleEndian.PutUint64(sz[:], b.TransactionsSize)
	buf = append(buf, sz[:]...)
	buf = appendU32(buf, uint32(len(b.ChunkHashes)))
	for _, c := range b.ChunkHashes {
		buf = append(buf, c[:]...)
	}
	return buf
}

// Hash returns the body's content hash, referenced by Header.BodyHash.
func (b *Body) Hash() [32]byte {
	return cryptoutil.Hash256(b.bytes())
}

// ChunkCount returns ceil(TransactionCount / chunkSize), spec.md §3.
func (b *Body) ChunkCount(chunkSize int) int {
	if b.TransactionCount == 0 {
		return 0
	}
	n := int(b.TransactionCount)
	return (n + chunkSize - 1) / chunkSize
}
