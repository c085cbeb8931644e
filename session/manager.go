package session

import (
	"net"
	"sync"
	"time"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/eventbus"
	"github.com/corechain/node/internal/xerrors"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/store"
	"github.com/corechain/node/wire"
)

// Manager owns the live peer registry and is the sole eventbus subscriber
// fanning BlocksEvent/NewTransactionsEvent out to every connected Session
// -- eventbus.Events has no unsubscribe, so a Session itself must never
// subscribe directly or its closure would leak for the life of the
// process (see package eventbus).
type Manager struct {
	cfg       *config.Config
	tree      *blocktree.BlockTree
	mempool   *mempool.PendingTransactions
	confirmed *store.Confirmed
	localID   chaintypes.MinerID

	mu       sync.Mutex
	sessions map[string]*Session
	banned   map[string]time.Time
}

// NewManager builds a Manager and subscribes it to events once.
func NewManager(cfg *config.Config, tree *blocktree.BlockTree, mp *mempool.PendingTransactions, confirmed *store.Confirmed, events *eventbus.Events, localID chaintypes.MinerID) *Manager {
	m := &Manager{
		cfg:       cfg,
		tree:      tree,
		mempool:   mp,
		confirmed: confirmed,
		localID:   localID,
		sessions:  make(map[string]*Session),
		banned:    make(map[string]time.Time),
	}
	events.OnBlocks(m.onBlocks)
	events.OnNewTransactions(m.onNewTransactions)
	return m
}

func (m *Manager) onBlocks(ev eventbus.BlocksEvent) {
	if len(ev.Blocks) == 0 {
		return
	}
	latest := ev.Blocks[len(ev.Blocks)-1]
	for _, sess := range m.snapshot() {
		sess.QueueBlock(latest)
	}
}

func (m *Manager) onNewTransactions(ev eventbus.NewTransactionsEvent) {
	if len(ev.Ids) == 0 {
		return
	}
	for _, sess := range m.snapshot() {
		sess.QueueTransactionIds(ev.Ids)
	}
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// IsBanned reports whether peerKey's 60s ban (spec.md §4.5's termination
// clause) is still in effect.
func (m *Manager) IsBanned(peerKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.banned[peerKey]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(m.banned, peerKey)
		return false
	}
	return true
}

// Ban blacklists peerKey for d, spec.md §4.5: "the peer's miner id [is]
// blocked for 60s" on any protocol violation.
func (m *Manager) Ban(peerKey string, d time.Duration) {
	m.mu.Lock()
	m.banned[peerKey] = time.Now().Add(d)
	m.mu.Unlock()
}

// ListBanned returns a snapshot of peerKey -> ban-expiry for every
// currently-banned peer, expired entries included (the caller, e.g. the
// status HTTP API's /banned endpoint, decides what "currently banned"
// means for display; IsBanned is still the authority used to admit or
// refuse a connection).
func (m *Manager) ListBanned() map[string]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.banned))
	for k, v := range m.banned {
		out[k] = v
	}
	return out
}

func (m *Manager) register(s *Session) {
	m.mu.Lock()
	m.sessions[s.PeerKey()] = s
	m.mu.Unlock()
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	if m.sessions[s.PeerKey()] == s {
		delete(m.sessions, s.PeerKey())
	}
	m.mu.Unlock()
}

// HandleConn performs the preamble handshake on a freshly accepted or
// dialed connection, then runs a Session to completion. Blocks until the
// session ends; callers invoke it on its own goroutine per connection.
func (m *Manager) HandleConn(conn net.Conn, remoteMinerID chaintypes.MinerID) error {
	defer conn.Close()

	if m.IsBanned(remoteMinerID.String()) {
		return xerrors.ErrValidation
	}

	local := Preamble{Version: m.cfg.NetworkProtocolVersion, LocalMinerId: m.localID, RemoteMinerId: remoteMinerID}
	if err := exchangePreamble(conn, m.cfg, local); err != nil {
		return err
	}

	s := New(conn, m.cfg, m.tree, m.mempool, m.confirmed, m, remoteMinerID)
	m.register(s)
	defer m.unregister(s)
	s.Run()
	return nil
}

// Preamble mirrors wire.Preamble for callers outside the wire package.
type Preamble = wire.Preamble

// exchangePreamble writes the local preamble and reads/validates the
// peer's, spec.md §6.2: "the first data frame exchanged in both
// directions after connecting".
func exchangePreamble(conn net.Conn, cfg *config.Config, local Preamble) error {
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- wire.WriteFrame(conn, wire.EncodePreamble(local), cfg.ConnectionTimeout)
	}()

	body, err := wire.ReadFrame(conn, 64, cfg.ConnectionTimeout)
	if werr := <-writeErr; werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	remote, err := wire.DecodePreamble(body)
	if err != nil {
		return err
	}
	if remote.Version != cfg.NetworkProtocolVersion {
		return xerrors.ErrSerialization
	}
	if remote.RemoteMinerId != local.LocalMinerId {
		// The peer's view of who it's dialing disagrees with our identity.
		return xerrors.ErrSerialization
	}
	return nil
}
