package wire

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/xerrors"
)

// EncodeBody writes version, maxVersion, transaction count, transactions
// total size, and the u32-tagged list of 32-byte chunk hashes.
func EncodeBody(w *Writer, b *chaintypes.Body) error {
	w.WriteU8(b.Version)
	w.WriteU8(b.MaxSupportedVersion)
	w.WriteU32(b.TransactionCount)
	w.WriteU64(b.TransactionsSize)
	buf := make([]byte, 0, len(b.ChunkHashes)*32)
	for _, c := range b.ChunkHashes {
		buf = append(buf, c[:]...)
	}
	return w.WriteContainer(LenU32, buf)
}

// DecodeBody is EncodeBody's inverse.
func DecodeBody(r *Reader, maxChunks int) (*chaintypes.Body, error) {
	b := &chaintypes.Body{}
	b.Version = r.ReadU8()
	b.MaxSupportedVersion = r.ReadU8()
	b.TransactionCount = r.ReadU32()
	b.TransactionsSize = r.ReadU64()
	raw := r.ReadContainer(LenU32, maxChunks*32)
	if r.Err() != nil {
		return nil, r.Err()
	}
	if len(raw)%32 != 0 {
		return nil, xerrors.ErrSerialization
	}
	n := len(raw) / 32
	b.ChunkHashes = make([][32]byte, n)
	for i := 0; i < n; i++ {
		copy(b.ChunkHashes[i][:], raw[i*32:(i+1)*32])
	}
	return b, nil
}

// EncodeChunk writes a chunk of transaction ids as a u16-tagged
// concatenation of their 50-byte wire forms (spec.md §3: a chunk holds at
// most ChunkSize=1024 ids).
func EncodeChunk(w *Writer, ids []chaintypes.TransactionId) error {
	buf := make([]byte, 0, len(ids)*chaintypes.TransactionIdSize)
	for _, id := range ids {
		b := id.Bytes()
		buf = append(buf, b[:]...)
	}
	return w.WriteContainer(LenU16, buf)
}

// DecodeChunk is EncodeChunk's inverse.
func DecodeChunk(r *Reader, maxIds int) ([]chaintypes.TransactionId, error) {
	raw := r.ReadContainer(LenU16, maxIds*chaintypes.TransactionIdSize)
	if r.Err() != nil {
		return nil, r.Err()
	}
	if len(raw)%chaintypes.TransactionIdSize != 0 {
		return nil, xerrors.ErrSerialization
	}
	n := len(raw) / chaintypes.TransactionIdSize
	ids := make([]chaintypes.TransactionId, n)
	for i := 0; i < n; i++ {
		id, ok := chaintypes.TransactionIdFromBytes(raw[i*chaintypes.TransactionIdSize : (i+1)*chaintypes.TransactionIdSize])
		if !ok {
			return nil, xerrors.ErrSerialization
		}
		ids[i] = id
	}
	return ids, nil
}
