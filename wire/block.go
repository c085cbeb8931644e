package wire

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/xerrors"
)

// EncodeBlock writes header, body, chunk-hash-ordered id chunks, and
// transactions, then wraps the whole concatenation in a single
// zlib-compressed envelope per spec.md §6.2 ("A block's wire form
// compresses the concatenation of (header, body, transactions) behind a
// single compressed-data envelope").
func EncodeBlock(b *chaintypes.Block) ([]byte, error) {
	inner := NewWriter()
	if err := EncodeHeader(inner, b.Header); err != nil {
		return nil, err
	}
	if err := EncodeBody(inner, b.Body); err != nil {
		return nil, err
	}
	inner.WriteU32(uint32(len(b.IdChunks)))
	for _, chunk := range b.IdChunks {
		if err := EncodeChunk(inner, chunk); err != nil {
			return nil, err
		}
	}
	inner.WriteU32(uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		if err := EncodeTransaction(inner, tx); err != nil {
			return nil, err
		}
	}

	outer := NewWriter()
	if err := outer.WriteCompressed(inner.Bytes()); err != nil {
		return nil, err
	}
	return outer.Bytes(), nil
}

// DecodeBlock is EncodeBlock's inverse. maxUncompressed and chunkSize
// bound allocation from an untrusted peer per spec.md's size limits.
func DecodeBlock(data []byte, maxUncompressed int, chunkSize int, maxTxCount int) (*chaintypes.Block, error) {
	outer := NewReader(data)
	payload := outer.ReadCompressed(maxUncompressed)
	if outer.Err() != nil {
		return nil, outer.Err()
	}

	r := NewReader(payload)
	header, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}
	maxChunks := (maxTxCount + chunkSize - 1) / chunkSize
	body, err := DecodeBody(r, maxChunks)
	if err != nil {
		return nil, err
	}
	chunkCount := int(r.ReadU32())
	if r.Err() != nil {
		return nil, r.Err()
	}
	if chunkCount > maxChunks {
		return nil, xerrors.ErrSerialization
	}
	chunks := make([][]chaintypes.TransactionId, chunkCount)
	for i := 0; i < chunkCount; i++ {
		chunk, err := DecodeChunk(r, chunkSize)
		if err != nil {
			return nil, err
		}
		chunks[i] = chunk
	}
	txCount := int(r.ReadU32())
	if r.Err() != nil {
		return nil, r.Err()
	}
	if txCount > maxTxCount {
		return nil, xerrors.ErrSerialization
	}
	txs := make([]chaintypes.Transaction, txCount)
	for i := 0; i < txCount; i++ {
		tx, err := DecodeTransaction(r)
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	if r.Err() != nil {
		return nil, r.Err()
	}
	return &chaintypes.Block{
		Header:       header,
		Body:         body,
		IdChunks:     chunks,
		Transactions: txs,
	}, nil
}
