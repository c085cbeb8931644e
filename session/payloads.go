package session

import (
	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/xerrors"
	"github.com/corechain/node/wire"
)

// encodeFirst is the FIRST payload: just the sender's current latest
// header (spec.md §4.5 step 1).
func encodeFirst(h *chaintypes.Header) ([]byte, error) {
	w := wire.NewWriter()
	if err := wire.EncodeHeader(w, h); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decodeFirst(payload []byte) (*chaintypes.Header, error) {
	return wire.DecodeHeader(wire.NewReader(payload))
}

// encodeIDHashes writes the "where are we" seed list GET_BLOCK_HEADER
// carries: a u8 count (capped at 100 per spec.md §4.5) of (id, hash) pairs.
func encodeIDHashes(ids []blocktree.BlockIDHash) ([]byte, error) {
	if len(ids) > 100 {
		ids = ids[:100]
	}
	w := wire.NewWriter()
	w.WriteU8(byte(len(ids)))
	for _, p := range ids {
		w.WriteU32(p.Id)
		w.WriteFixed(p.Hash[:])
	}
	return w.Bytes(), nil
}

func decodeIDHashes(payload []byte) ([]blocktree.BlockIDHash, error) {
	r := wire.NewReader(payload)
	n := int(r.ReadU8())
	if n > 100 {
		return nil, xerrors.ErrSerialization
	}
	out := make([]blocktree.BlockIDHash, n)
	for i := 0; i < n; i++ {
		out[i].Id = r.ReadU32()
		copy(out[i].Hash[:], r.ReadFixed(32))
	}
	if r.Err() != nil {
		return nil, r.Err()
	}
	return out, nil
}

// encodeHeaderReply wraps a GET_BLOCK_HEADER reply: a u8 found flag, then
// the header if found. An empty tail means "I have nothing past your seed
// list".
func encodeHeaderReply(h *chaintypes.Header) ([]byte, error) {
	w := wire.NewWriter()
	if h == nil {
		w.WriteU8(0)
		return w.Bytes(), nil
	}
	w.WriteU8(1)
	if err := wire.EncodeHeader(w, h); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decodeHeaderReply(payload []byte) (*chaintypes.Header, error) {
	r := wire.NewReader(payload)
	found := r.ReadU8()
	if r.Err() != nil {
		return nil, r.Err()
	}
	if found == 0 {
		return nil, nil
	}
	return wire.DecodeHeader(r)
}

// blockPiece selects which part of a pending block GET_BLOCK asks for.
// Body and chunk ids are fetched this way; the transaction bodies a chunk
// names are fetched separately through GET_NEW_TRANSACTIONS, the same
// codec and mempool delivery path gossip-driven fetches already use.
type blockPiece byte

const (
	pieceBody blockPiece = iota
	pieceChunk
)

type getBlockRequest struct {
	Hash       [32]byte
	Piece      blockPiece
	ChunkIndex uint16 // meaningful for pieceChunk only
}

func encodeGetBlock(req getBlockRequest) []byte {
	w := wire.NewWriter()
	w.WriteFixed(req.Hash[:])
	w.WriteU8(byte(req.Piece))
	w.WriteU16(req.ChunkIndex)
	return w.Bytes()
}

func decodeGetBlock(payload []byte) (getBlockRequest, error) {
	r := wire.NewReader(payload)
	var req getBlockRequest
	copy(req.Hash[:], r.ReadFixed(32))
	req.Piece = blockPiece(r.ReadU8())
	req.ChunkIndex = r.ReadU16()
	if r.Err() != nil {
		return getBlockRequest{}, r.Err()
	}
	return req, nil
}

// encodeGetBlockReply wraps a GET_BLOCK reply: a u8 found flag, then the
// piece-specific payload if found. An unfound reply means the responder
// never had (or has since banned) the requested block.
func encodeGetBlockReply(found bool, payload []byte) []byte {
	w := wire.NewWriter()
	if !found {
		w.WriteU8(0)
		return w.Bytes()
	}
	w.WriteU8(1)
	w.WriteContainer(wire.LenU32, payload)
	return w.Bytes()
}

func decodeGetBlockReply(raw []byte) (payload []byte, found bool, err error) {
	r := wire.NewReader(raw)
	f := r.ReadU8()
	if r.Err() != nil {
		return nil, false, r.Err()
	}
	if f == 0 {
		return nil, false, nil
	}
	payload = r.ReadContainer(wire.LenU32, 0)
	if r.Err() != nil {
		return nil, false, r.Err()
	}
	return payload, true, nil
}

// encodeKeys writes a batch of mempool keys, the GET_NEW_TRANSACTIONS
// request body: a pending block's MissingTransactionIDs() only carries
// the addressing fields (type, blockId, size, hash), which is all a
// by-content lookup needs -- the discriminator distinguishes two
// submissions of "the same" transaction, not two different ones.
func encodeKeys(keys []chaintypes.Key) []byte {
	w := wire.NewWriter()
	w.WriteU32(uint32(len(keys)))
	for _, k := range keys {
		w.WriteFixed(k[:])
	}
	return w.Bytes()
}

func decodeKeys(payload []byte, maxCount int) ([]chaintypes.Key, error) {
	r := wire.NewReader(payload)
	n := int(r.ReadU32())
	if r.Err() != nil {
		return nil, r.Err()
	}
	if maxCount > 0 && n > maxCount {
		return nil, xerrors.ErrSerialization
	}
	out := make([]chaintypes.Key, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], r.ReadFixed(len(chaintypes.Key{})))
	}
	if r.Err() != nil {
		return nil, r.Err()
	}
	return out, nil
}

// encodeTransactions writes a self-delimited list of full transactions,
// the GET_NEW_TRANSACTIONS reply body.
func encodeTransactions(txs []chaintypes.Transaction) ([]byte, error) {
	w := wire.NewWriter()
	w.WriteU32(uint32(len(txs)))
	for _, tx := range txs {
		if err := wire.EncodeTransaction(w, tx); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func decodeTransactions(payload []byte, maxCount int) ([]chaintypes.Transaction, error) {
	r := wire.NewReader(payload)
	n := int(r.ReadU32())
	if r.Err() != nil {
		return nil, r.Err()
	}
	if maxCount > 0 && n > maxCount {
		return nil, xerrors.ErrSerialization
	}
	out := make([]chaintypes.Transaction, n)
	for i := 0; i < n; i++ {
		tx, err := wire.DecodeTransaction(r)
		if err != nil {
			return nil, err
		}
		out[i] = tx
	}
	return out, nil
}

// encodeBlocks writes a self-delimited list of fully materialized blocks,
// the NEW_BLOCKS push payload -- usually a single freshly mined or
// accepted block, occasionally a short catch-up burst.
func encodeBlocks(blocks []*chaintypes.Block) ([]byte, error) {
	w := wire.NewWriter()
	w.WriteU8(byte(len(blocks)))
	for _, b := range blocks {
		raw, err := wire.EncodeBlock(b)
		if err != nil {
			return nil, err
		}
		if err := w.WriteContainer(wire.LenU32, raw); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func decodeBlocks(payload []byte, maxUncompressed, chunkSize, maxTxCount int) ([]*chaintypes.Block, error) {
	r := wire.NewReader(payload)
	n := int(r.ReadU8())
	out := make([]*chaintypes.Block, 0, n)
	for i := 0; i < n; i++ {
		raw := r.ReadContainer(wire.LenU32, maxUncompressed+4096)
		if r.Err() != nil {
			return nil, r.Err()
		}
		block, err := wire.DecodeBlock(raw, maxUncompressed, chunkSize, maxTxCount)
		if err != nil {
			return nil, err
		}
		out = append(out, block)
	}
	return out, nil
}
