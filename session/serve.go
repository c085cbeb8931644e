package session

import (
	"github.com/corechain/node/wire"
)

// handleGetBlock answers a peer's request for one piece of a block we
// have assembled, spec.md §4.5 step 3's server side. Only blocks still
// held by the tree (recently announced, not yet pruned past the rollback
// window) can be served -- a peer asking for something older than that
// should be walking the confirmed chain by id via GET_BLOCK_HEADER, not
// re-requesting pieces of a block this node may have already discarded.
func (s *Session) handleGetBlock(pkt *wire.Packet) error {
	req, err := decodeGetBlock(pkt.Payload)
	if err != nil {
		return err
	}
	block, ok := s.tree.GetBlock(req.Hash)
	if !ok {
		return s.sendReply(pkt.ID, encodeGetBlockReply(false, nil))
	}

	var piece []byte
	switch req.Piece {
	case pieceBody:
		w := wire.NewWriter()
		if err := wire.EncodeBody(w, block.Body); err != nil {
			return err
		}
		piece = w.Bytes()

	case pieceChunk:
		if int(req.ChunkIndex) >= len(block.IdChunks) {
			return s.sendReply(pkt.ID, encodeGetBlockReply(false, nil))
		}
		w := wire.NewWriter()
		if err := wire.EncodeChunk(w, block.IdChunks[req.ChunkIndex]); err != nil {
			return err
		}
		piece = w.Bytes()

	default:
		return s.sendReply(pkt.ID, encodeGetBlockReply(false, nil))
	}

	return s.sendReply(pkt.ID, encodeGetBlockReply(true, piece))
}

// handleGetNewTransactions answers a peer's request for the bodies of
// transaction ids it's missing, spec.md §4.5 step 4's server side.
func (s *Session) handleGetNewTransactions(pkt *wire.Packet) error {
	keys, err := decodeKeys(pkt.Payload, s.cfg.MaxTransactionIDsPerBatch)
	if err != nil {
		return err
	}
	txs := s.mempool.GetMany(keys)
	payload, err := encodeTransactions(txs)
	if err != nil {
		return err
	}
	return s.sendReply(pkt.ID, payload)
}

// onGetNewTransactionsReply feeds fetched transactions back into the
// mempool, which delivers matches to activePending through the sink it
// was registered under by blocktree.onPendingUpdated -- the session never
// touches the pending block's transaction set directly.
func (s *Session) onGetNewTransactionsReply(payload []byte) error {
	s.requestingTransactions = false
	txs, err := decodeTransactions(payload, s.cfg.MaxTransactionIDsPerBatch)
	if err != nil {
		return err
	}
	s.mempool.Add(txs, s.peerKey)
	return s.driveBlock()
}
