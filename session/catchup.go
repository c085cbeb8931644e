package session

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/xerrors"
	"github.com/corechain/node/pendingblock"
	"github.com/corechain/node/wire"
)

// driveBlock requests whatever piece activePending is still missing, one
// round trip per piece per spec.md §4.5 step 3. A terminal status (the
// block finished assembling, was banned, or expired) clears activePending
// and resumes the header walk.
func (s *Session) driveBlock() error {
	pb := s.activePending
	if pb == nil {
		return s.driveHeader()
	}
	if pb.Status().Terminal() {
		s.activePending = nil
		return s.driveHeader()
	}

	hash := pb.Hash()
	var req getBlockRequest

	switch pb.Status() {
	case pendingblock.StatusMissingBody:
		req = getBlockRequest{Hash: hash, Piece: pieceBody}

	case pendingblock.StatusMissingTransactionIDs:
		missing := pb.MissingChunkIndices()
		if len(missing) == 0 {
			s.activePending = nil
			return s.driveHeader()
		}
		req = getBlockRequest{Hash: hash, Piece: pieceChunk, ChunkIndex: uint16(missing[0])}

	case pendingblock.StatusMissingTransactions:
		return s.requestMissingTransactions(pb)

	default:
		s.activePending = nil
		return s.driveHeader()
	}

	id, err := s.sendRequest(wire.PacketGetBlock, encodeGetBlock(req))
	if err != nil {
		return err
	}
	s.requestingBlock = true
	s.awaiting = requestKindForPiece(req.Piece)
	s.awaitingID = id
	return nil
}

func requestKindForPiece(p blockPiece) requestKind {
	if p == pieceBody {
		return reqBlockBody
	}
	return reqBlockChunk
}

// requestMissingTransactions fetches the body of every transaction id the
// active pending block still lacks via GET_NEW_TRANSACTIONS, batched to
// roughly TransactionMaxSize bytes per request (spec.md §4.5 step 4).
func (s *Session) requestMissingTransactions(pb *pendingblock.PendingBlock) error {
	missing := pb.MissingTransactionIDs()
	if len(missing) == 0 {
		s.activePending = nil
		return s.driveHeader()
	}
	batch := batchKeysBySize(missing, s.cfg.TransactionMaxSize)
	id, err := s.sendRequest(wire.PacketGetNewTransactions, encodeKeys(batch))
	if err != nil {
		return err
	}
	s.requestingTransactions = true
	s.awaiting = reqNewTransactions
	s.awaitingID = id
	return nil
}

// batchKeysBySize caps a key list so its encoded size stays within budget,
// spec.md §4.5 step 4: "fetched in ... batches up to ~kTransactionMaxSize
// bytes/request".
func batchKeysBySize(keys []chaintypes.Key, budget int) []chaintypes.Key {
	const perKey = 39 // len(chaintypes.Key{})
	if budget <= 0 {
		return keys
	}
	maxN := budget / perKey
	if maxN < 1 {
		maxN = 1
	}
	if len(keys) > maxN {
		return keys[:maxN]
	}
	return keys
}

// onGetBlockReply applies a fetched block piece to activePending, driving
// it (and onPendingUpdated's existing completion machinery) toward
// StatusComplete.
func (s *Session) onGetBlockReply(payload []byte) error {
	s.requestingBlock = false
	pb := s.activePending
	if pb == nil {
		return nil
	}
	body, found, err := decodeGetBlockReply(payload)
	if err != nil {
		return err
	}
	if !found {
		pb.SetInvalid("peer does not have requested block piece")
		s.activePending = nil
		return s.driveHeader()
	}

	switch pb.Status() {
	case pendingblock.StatusMissingBody:
		maxChunks := s.cfg.BlockMaxTransactions/s.cfg.ChunkSize + 1
		decoded, err := wire.DecodeBody(wire.NewReader(body), maxChunks)
		if err != nil {
			return err
		}
		if pb.AddBody(decoded) == pendingblock.InvalidData {
			return xerrors.ErrSerialization
		}

	case pendingblock.StatusMissingTransactionIDs:
		chunk, err := wire.DecodeChunk(wire.NewReader(body), s.cfg.ChunkSize)
		if err != nil {
			return err
		}
		if pb.AddChunks([][]chaintypes.TransactionId{chunk}) == pendingblock.InvalidData {
			return xerrors.ErrSerialization
		}
	}

	return s.driveBlock()
}
