package session

import (
	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/xerrors"
	"github.com/corechain/node/wire"
)

// sendFirst transmits this side's current latest header, spec.md §4.5
// step 1: "after handshake both sides send FIRST".
func (s *Session) sendFirst() error {
	s.localLatestHeader = s.latestLocalHeader()
	payload, err := encodeFirst(s.localLatestHeader)
	if err != nil {
		return err
	}
	_, err = s.sendRequest(wire.PacketFirst, payload)
	return err
}

func (s *Session) latestLocalHeader() *chaintypes.Header {
	branch := s.tree.GetActiveBranch()
	if len(branch) == 0 {
		return nil
	}
	return branch[len(branch)-1].Header
}

// handlePacket dispatches one decoded packet to the right handler. Any
// error returned is a protocol violation per spec.md §4.5's termination
// clause and ends the session (see onProtocolError).
func (s *Session) handlePacket(pkt *wire.Packet) error {
	if pkt.IsReply {
		return s.handleReply(pkt)
	}
	switch pkt.Type {
	case wire.PacketFirst:
		return s.handleFirst(pkt)
	case wire.PacketGetBlockHeader:
		return s.handleGetBlockHeader(pkt)
	case wire.PacketGetBlock:
		return s.handleGetBlock(pkt)
	case wire.PacketGetNewTransactions:
		return s.handleGetNewTransactions(pkt)
	case wire.PacketNewBlocks:
		return s.handleNewBlocks(pkt)
	case wire.PacketNewTransactions:
		return s.handleNewTransactionIds(pkt)
	default:
		return xerrors.ErrSerialization
	}
}

func (s *Session) handleReply(pkt *wire.Packet) error {
	if pkt.ReplyTo != s.awaitingID || s.awaiting == reqNone {
		// A stale or unmatched reply: ignore rather than terminate, a
		// legitimate peer can race a reply against our own timeout.
		return nil
	}
	kind := s.awaiting
	s.awaiting = reqNone
	s.awaitingID = 0

	switch kind {
	case reqBlockHeader:
		return s.onBlockHeaderReply(pkt.Payload)
	case reqBlockBody, reqBlockChunk:
		return s.onGetBlockReply(pkt.Payload)
	case reqNewTransactions:
		return s.onGetNewTransactionsReply(pkt.Payload)
	}
	return nil
}

// handleFirst processes the peer's FIRST: spec.md §4.5 step 2, "if peer
// is deeper, request next header".
func (s *Session) handleFirst(pkt *wire.Packet) error {
	header, err := decodeFirst(pkt.Payload)
	if err != nil {
		return err
	}
	s.remoteLatestHeader = header
	s.firstPacketPending = false
	return s.driveHeader()
}

// driveHeader requests the next header we're missing from the peer, or
// starts first-contact transaction gossip once we've caught up.
func (s *Session) driveHeader() error {
	if s.awaiting != reqNone || s.activePending != nil {
		return nil
	}
	if s.remoteLatestHeader == nil {
		return nil
	}
	local := s.localLatestHeader
	if local != nil && local.Id >= s.remoteLatestHeader.Id {
		return s.onCaughtUp()
	}

	seed := s.tree.GetBlockIDsAndHashes(100, 256)
	payload, err := encodeIDHashes(seed)
	if err != nil {
		return err
	}
	id, err := s.sendRequest(wire.PacketGetBlockHeader, payload)
	if err != nil {
		return err
	}
	s.requestingBlock = true
	s.awaiting = reqBlockHeader
	s.awaitingID = id
	return nil
}

func (s *Session) onCaughtUp() error {
	s.waitingForNewBlock = true
	if !s.sharedPendingTransactions {
		return s.sendFirstPendingTransactions()
	}
	return nil
}

// handleGetBlockHeader answers a peer's seed-list request with the next
// header past whatever it already has, spec.md §4.5 step 2's server side.
func (s *Session) handleGetBlockHeader(pkt *wire.Packet) error {
	known, err := decodeIDHashes(pkt.Payload)
	if err != nil {
		return err
	}
	next := s.nextHeaderPast(known)
	payload, err := encodeHeaderReply(next)
	if err != nil {
		return err
	}
	return s.sendReply(pkt.ID, payload)
}

// nextHeaderPast finds the deepest id the peer reports, then returns its
// child header. Anything at or below the confirmed tip is walked directly
// by id from the confirmed store, which retains full history; anything
// past the confirmed tip -- still a candidate, not yet committed -- is
// looked up by hash in the in-memory active branch instead, since that is
// the only place an uncommitted header lives.
func (s *Session) nextHeaderPast(known []blocktree.BlockIDHash) *chaintypes.Header {
	var maxID uint32
	knownHashes := make(map[[32]byte]uint32, len(known))
	for _, k := range known {
		knownHashes[k.Hash] = k.Id
		if k.Id > maxID {
			maxID = k.Id
		}
	}

	latestConfirmed := s.confirmed.GetLatestBlockId()
	if maxID < latestConfirmed {
		if h, ok := s.confirmed.GetBlockHeader(maxID + 1); ok {
			return h
		}
		return nil
	}

	branch := s.tree.GetActiveBranch()
	if len(branch) == 0 {
		return nil
	}
	for i := len(branch) - 1; i >= 0; i-- {
		if _, ok := knownHashes[branch[i].Hash]; ok {
			if i+1 < len(branch) {
				return branch[i+1].Header
			}
			return nil
		}
	}
	if maxID < branch[0].Header.Id {
		if h, ok := s.confirmed.GetBlockHeader(maxID + 1); ok {
			return h
		}
	}
	return branch[0].Header
}

func (s *Session) onBlockHeaderReply(payload []byte) error {
	s.requestingBlock = false
	header, err := decodeHeaderReply(payload)
	if err != nil {
		return err
	}
	if header == nil {
		s.waitingForNewBlock = true
		if !s.sharedPendingTransactions {
			return s.sendFirstPendingTransactions()
		}
		return nil
	}

	pb, exists, err := s.tree.AddHeader(header, s.peerKey)
	if err != nil {
		return xerrors.Wrap(xerrors.ErrInvalidBlock, err.Error())
	}
	if exists && pb == nil {
		return s.driveHeader()
	}
	if pb != nil {
		s.activePending = pb
	}
	return s.driveBlock()
}
