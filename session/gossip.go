package session

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/xerrors"
	"github.com/corechain/node/wire"
)

// firstGossipBatches caps how many GetExecuted pages sendFirstPendingTransactions
// walks before stopping, spec.md §4.5 step 5: "gossips the first few
// batches of the local executed-transactions set".
const firstGossipBatches = 4

// sendNewBlocks pushes freshly available blocks to the peer, spec.md §4.5
// NEW_BLOCKS. A push, not a request -- the peer applies it via AddBlock
// and never replies.
func (s *Session) sendNewBlocks(blocks []*chaintypes.Block) error {
	payload, err := encodeBlocks(blocks)
	if err != nil {
		return err
	}
	_, err = s.sendRequest(wire.PacketNewBlocks, payload)
	return err
}

// handleNewBlocks applies a pushed block batch, spec.md §4.5 step 2's
// alternate entry point: a peer that has advanced announces directly
// instead of waiting to be asked.
func (s *Session) handleNewBlocks(pkt *wire.Packet) error {
	maxChunks := s.cfg.BlockMaxTransactions/s.cfg.ChunkSize + 1
	blocks, err := decodeBlocks(pkt.Payload, int(s.cfg.BlockMaxTransactionsSize), s.cfg.ChunkSize, maxChunks*s.cfg.ChunkSize)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if _, err := s.tree.AddBlock(b, s.peerKey); err != nil {
			return xerrors.Wrap(xerrors.ErrInvalidBlock, err.Error())
		}
	}
	if len(blocks) > 0 {
		last := blocks[len(blocks)-1].Header
		if s.remoteLatestHeader == nil || last.Id > s.remoteLatestHeader.Id {
			s.remoteLatestHeader = last
		}
	}
	return s.driveHeader()
}

// appendGossip buffers ids for NEW_TRANSACTIONS announcement, flushing
// immediately once the buffer reaches MaxTransactionIDsPerBatch (spec.md
// §4.5 step 6); a periodic ticker (see Session.Run) flushes whatever is
// left over below that threshold.
func (s *Session) appendGossip(keys []chaintypes.Key) error {
	s.gossipBuf = append(s.gossipBuf, keys...)
	if len(s.gossipBuf) >= s.cfg.MaxTransactionIDsPerBatch {
		return s.flushGossip()
	}
	return nil
}

// flushGossip sends whatever is buffered, skipping ids already known to
// have been shared with this peer per the per-session recentFilter.
func (s *Session) flushGossip() error {
	if len(s.gossipBuf) == 0 {
		return nil
	}
	buf := s.gossipBuf
	s.gossipBuf = nil
	return s.announceTransactions(buf)
}

// announceTransactions pushes a NEW_TRANSACTIONS batch, deduping against
// ids already sent to this peer and recording the ones actually sent.
func (s *Session) announceTransactions(keys []chaintypes.Key) error {
	fresh := keys[:0:0]
	for _, k := range keys {
		if s.dedup.Has(k) {
			continue
		}
		fresh = append(fresh, k)
	}
	if len(fresh) == 0 {
		return nil
	}
	if len(fresh) > s.cfg.MaxTransactionIDsPerBatch {
		fresh = fresh[:s.cfg.MaxTransactionIDsPerBatch]
	}
	if _, err := s.sendRequest(wire.PacketNewTransactions, encodeKeys(fresh)); err != nil {
		return err
	}
	for _, k := range fresh {
		s.dedup.Add(k)
	}
	return nil
}

// handleNewTransactionIds answers a peer's NEW_TRANSACTIONS push: any id
// we don't already hold is fetched via GET_NEW_TRANSACTIONS.
func (s *Session) handleNewTransactionIds(pkt *wire.Packet) error {
	keys, err := decodeKeys(pkt.Payload, s.cfg.MaxTransactionIDsPerBatch)
	if err != nil {
		return err
	}
	have := s.mempool.HasAny(keys)
	var want []chaintypes.Key
	for _, k := range keys {
		if _, ok := have[k]; !ok {
			want = append(want, k)
		}
		s.dedup.Add(k)
	}
	if len(want) == 0 || s.awaiting != reqNone {
		// A catch-up or prior gossip fetch already owns the single
		// outstanding-request slot, so these ids are not fetched and are
		// not remembered; the announcing peer has already marked them as
		// shared with us, so they arrive only through another announcement
		// or a pending block's request.
		return nil
	}
	if len(want) > s.cfg.MaxTransactionIDsPerBatch {
		want = want[:s.cfg.MaxTransactionIDsPerBatch]
	}
	id, err := s.sendRequest(wire.PacketGetNewTransactions, encodeKeys(want))
	if err != nil {
		return err
	}
	s.requestingTransactions = true
	s.awaiting = reqNewTransactions
	s.awaitingID = id
	return nil
}

// sendFirstPendingTransactions gossips the first few pages of the local
// executed-transactions set once the peer has caught up to our chain
// height, spec.md §4.5 step 5.
func (s *Session) sendFirstPendingTransactions() error {
	s.sharedPendingTransactions = true
	batch := s.cfg.MaxTransactionIDsPerBatch
	txs := s.mempool.GetExecuted(firstGossipBatches * batch)
	for i := 0; i < firstGossipBatches && len(txs) > 0; i++ {
		n := batch
		if n <= 0 || n > len(txs) {
			n = len(txs)
		}
		keys := make([]chaintypes.Key, n)
		for j, tx := range txs[:n] {
			keys[j] = tx.GetId().Key()
		}
		if err := s.announceTransactions(keys); err != nil {
			return err
		}
		txs = txs[n:]
	}
	return nil
}
