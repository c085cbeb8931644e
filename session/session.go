package session

import (
	"net"
	"time"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/internal/xerrors"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/pendingblock"
	"github.com/corechain/node/store"
	"github.com/corechain/node/wire"
)

// Broadcast queue depths, grounded on the teacher's maxQueuedProps/
// maxQueuedAnns (node/cn/peer.go): small bounds are deliberate, a slow
// peer only ever loses stale broadcasts, never blocks the node.
const (
	maxQueuedBlocks = 4
	maxQueuedTxRuns = 128
)

// requestKind tags what the single outstanding request id is waiting
// for, so the matching reply (matched by ReplyTo) knows how to decode its
// payload and where to route the result. A Session only ever has one
// request in flight at a time -- the catch-up narrative is strictly
// sequential (spec.md §4.5: "one round per missing piece").
type requestKind int

const (
	reqNone requestKind = iota
	reqBlockHeader
	reqBlockBody
	reqBlockChunk
	reqNewTransactions
)

// Session is one peer connection's state machine, spec.md §4.5. All
// mutable fields below are touched only from the goroutine running Run --
// readLoop and the Manager's broadcast fan-out communicate with it
// exclusively through channels, so no lock guards them.
type Session struct {
	conn net.Conn
	cfg  *config.Config

	tree      *blocktree.BlockTree
	mempool   *mempool.PendingTransactions
	confirmed *store.Confirmed
	mgr       *Manager

	remoteMinerID chaintypes.MinerID
	peerKey       string

	dedup *recentFilter

	nextID uint32

	// Protocol state flags, spec.md §4.5.
	firstPacketPending        bool
	requestingBlock           bool
	requestingTransactions    bool
	waitingForNewBlock        bool
	sharedPendingTransactions bool

	localLatestHeader  *chaintypes.Header
	remoteLatestHeader *chaintypes.Header

	awaiting      requestKind
	awaitingID    uint32
	activePending *pendingblock.PendingBlock

	gossipBuf []chaintypes.Key

	outBlocks chan *chaintypes.Block
	outTxRuns chan []chaintypes.Key
	incoming  chan *wire.Packet
	readErr   chan error
	closed    chan struct{}
}

// New builds a Session for an already-connected, preamble-verified conn.
// remoteMinerID comes from the preamble handshake the Manager performs
// before constructing the Session.
func New(conn net.Conn, cfg *config.Config, tree *blocktree.BlockTree, mp *mempool.PendingTransactions, confirmed *store.Confirmed, mgr *Manager, remoteMinerID chaintypes.MinerID) *Session {
	s := &Session{
		conn:               conn,
		cfg:                cfg,
		tree:               tree,
		mempool:            mp,
		confirmed:          confirmed,
		mgr:                mgr,
		remoteMinerID:      remoteMinerID,
		peerKey:            remoteMinerID.String(),
		dedup:              newRecentFilter(cfg.RecentTxFilterChunks, cfg.RecentTxFilterChunkSize),
		firstPacketPending: true,
		outBlocks:          make(chan *chaintypes.Block, maxQueuedBlocks),
		outTxRuns:          make(chan []chaintypes.Key, maxQueuedTxRuns),
		incoming:           make(chan *wire.Packet, 16),
		readErr:            make(chan error, 1),
		closed:             make(chan struct{}),
	}
	return s
}

// PeerKey identifies the remote miner for ban bookkeeping.
func (s *Session) PeerKey() string { return s.peerKey }

// Info snapshots the protocol state flags of spec.md §4.5, mirroring the
// teacher's PeerInfo introspection shape (node/cn/peer.go).
type Info struct {
	PeerKey                   string
	RequestingBlock           bool
	RequestingTransactions    bool
	WaitingForNewBlock        bool
	SharedPendingTransactions bool
}

func (s *Session) Info() Info {
	return Info{
		PeerKey:                   s.peerKey,
		RequestingBlock:           s.requestingBlock,
		RequestingTransactions:    s.requestingTransactions,
		WaitingForNewBlock:        s.waitingForNewBlock,
		SharedPendingTransactions: s.sharedPendingTransactions,
	}
}

// QueueBlock enqueues a block for NEW_BLOCKS propagation, dropping the
// oldest queued block rather than blocking the node if this peer is slow
// to drain (grounded on node/cn/peer.go's AsyncSendNewBlock semantics).
func (s *Session) QueueBlock(b *chaintypes.Block) {
	select {
	case s.outBlocks <- b:
	default:
		select {
		case <-s.outBlocks:
		default:
		}
		select {
		case s.outBlocks <- b:
		default:
		}
	}
}

// QueueTransactionIds enqueues a batch of newly pooled transaction ids for
// gossip, same drop-oldest policy as QueueBlock.
func (s *Session) QueueTransactionIds(keys []chaintypes.Key) {
	select {
	case s.outTxRuns <- keys:
	default:
		select {
		case <-s.outTxRuns:
		default:
		}
		select {
		case s.outTxRuns <- keys:
		default:
		}
	}
}

// Close terminates the session's connection and goroutines, idempotent.
func (s *Session) Close() {
	select {
	case <-s.closed:
		return
	default:
		close(s.closed)
	}
	s.conn.Close()
}

// Run drives the session until the connection closes or a protocol
// violation terminates it. Blocks until the session ends.
func (s *Session) Run() {
	go s.readLoop()
	defer s.Close()
	defer func() { logger.Debug("session ended", "info", s.Info()) }()

	if err := s.sendFirst(); err != nil {
		logger.Debug("failed to send FIRST", "peer", s.peerKey, "err", err)
		return
	}

	flushTicker := time.NewTicker(time.Second)
	defer flushTicker.Stop()

	for {
		select {
		case <-s.closed:
			return

		case err := <-s.readErr:
			s.onProtocolError(err)
			return

		case pkt := <-s.incoming:
			if err := s.handlePacket(pkt); err != nil {
				s.onProtocolError(err)
				return
			}

		case block := <-s.outBlocks:
			if err := s.sendNewBlocks([]*chaintypes.Block{block}); err != nil {
				return
			}

		case keys := <-s.outTxRuns:
			if err := s.appendGossip(keys); err != nil {
				return
			}

		case <-flushTicker.C:
			if err := s.flushGossip(); err != nil {
				return
			}
		}
	}
}

// onProtocolError implements spec.md §4.5's termination clause: any
// protocol violation closes the connection and blacklists the peer's
// miner id for 60s. ErrTimeout and plain connection errors close without
// a ban -- those are not evidence of misbehavior.
func (s *Session) onProtocolError(err error) {
	if err == nil {
		return
	}
	switch {
	case xerrors.Is(err, xerrors.ErrSerialization), xerrors.Is(err, xerrors.ErrInvalidBlock), xerrors.Is(err, xerrors.ErrBadSignature):
		logger.Warn("protocol violation, banning peer", "peer", s.peerKey, "err", err)
		s.mgr.Ban(s.peerKey, 60*time.Second)
	default:
		logger.Debug("session ending", "peer", s.peerKey, "err", err)
	}
}

func (s *Session) readLoop() {
	for {
		body, err := wire.ReadFrame(s.conn, s.cfg.NetworkMaxPacketSize, s.cfg.ConnectionTimeout)
		if err != nil {
			select {
			case s.readErr <- err:
			case <-s.closed:
			}
			return
		}
		if body == nil {
			continue // keep-alive
		}
		pkt, err := wire.DecodePacket(body)
		if err != nil {
			select {
			case s.readErr <- err:
			case <-s.closed:
			}
			return
		}
		select {
		case s.incoming <- pkt:
		case <-s.closed:
			return
		}
	}
}

// nextPacketID returns the session's next monotonic outgoing packet id.
func (s *Session) nextPacketID() uint32 {
	s.nextID++
	return s.nextID
}

func (s *Session) sendRequest(typ wire.PacketType, payload []byte) (uint32, error) {
	id := s.nextPacketID()
	frame := wire.EncodeRequest(id, typ, payload)
	if err := wire.WriteFrame(s.conn, frame, s.cfg.ConnectionTimeout); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Session) sendReply(replyTo uint32, payload []byte) error {
	id := s.nextPacketID()
	frame := wire.EncodeReply(id, replyTo, payload)
	return wire.WriteFrame(s.conn, frame, s.cfg.ConnectionTimeout)
}
