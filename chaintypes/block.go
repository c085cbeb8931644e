package chaintypes

import (
	"github.com/pkg/errors"

	"github.com/corechain/node/cryptoutil"
)

// Block is the fully-materialized, immutable block of spec.md §3: header,
// body, the transaction-id chunks (fixed size from config, last one may be
// shorter), and the concrete transactions the ids address, in the body's
// recorded order.
type Block struct {
	Header       *Header
	Body         *Body
	IdChunks     [][]TransactionId
	Transactions []Transaction
}

// Validate checks the structural invariants of spec.md §3 that do not
// require comparing against a parent (id/depth-vs-parent checks live in
// blocktree, which has the parent in hand). Returns the first violation.
func (b *Block) Validate(chunkSize int, maxTxCount int, maxTxSize int64) error {
	if b.Header == nil || b.Body == nil {
		return errors.New("block: missing header or body")
	}
	if b.Header.Depth > b.Header.Id {
		return errors.New("block: depth exceeds id")
	}
	if len(b.Header.NextMiners) < 1 || len(b.Header.NextMiners) > 240 {
		return errors.New("block: next miners queue out of [1,240] range")
	}
	if !b.Header.VerifySignature() {
		return errors.New("block: bad header signature")
	}
	bodyHash := b.Body.Hash()
	if bodyHash != b.Header.BodyHash {
		return errors.New("block: body hash mismatch")
	}
	if int(b.Body.TransactionCount) != len(b.Transactions) {
		return errors.New("block: transaction count mismatch")
	}
	if b.Body.TransactionCount > uint32(maxTxCount) {
		return errors.New("block: too many transactions")
	}
	if int64(b.Body.TransactionsSize) > maxTxSize {
		return errors.New("block: transactions too large")
	}
	wantChunks := b.Body.ChunkCount(chunkSize)
	if len(b.IdChunks) != wantChunks || len(b.Body.ChunkHashes) != wantChunks {
		return errors.New("block: chunk count mismatch")
	}
	seen := make(map[Key]struct{}, len(b.Transactions))
	var totalSize uint64
	idx := 0
	for ci, chunk := range b.IdChunks {
		if ci < len(b.IdChunks)-1 && len(chunk) != chunkSize {
			return errors.New("block: non-terminal chunk has wrong size")
		}
		if len(chunk) == 0 || len(chunk) > chunkSize {
			return errors.New("block: chunk size out of range")
		}
		hash := HashChunk(chunk)
		if hash != b.Body.ChunkHashes[ci] {
			return errors.New("block: chunk hash mismatch")
		}
		for _, id := range chunk {
			if idx >= len(b.Transactions) {
				return errors.New("block: chunk ids exceed transaction list")
			}
			tx := b.Transactions[idx]
			if tx.GetId().Key() != id.Key() {
				return errors.New("block: transaction/id mismatch at position")
			}
			k := id.Key()
			if _, dup := seen[k]; dup {
				return errors.New("block: duplicate transaction id")
			}
			seen[k] = struct{}{}
			totalSize += uint64(tx.GetSize())
			idx++
		}
	}
	if totalSize != b.Body.TransactionsSize {
		return errors.New("block: declared size mismatch")
	}
	return nil
}

// HashChunk hashes a chunk of transaction ids the same way on every caller
// (builder, wire decode, pendingblock reassembly), so a chunk received over
// the network can be matched against the body's recorded chunk hash.
func HashChunk(chunk []TransactionId) [32]byte {
	bufs := make([][]byte, len(chunk))
	for i, id := range chunk {
		b := id.Bytes()
		bufs[i] = b[:]
	}
	return cryptoutil.Hash256(bufs...)
}
