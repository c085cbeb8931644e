package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/eventbus"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/store"
)

// sessionHarness bundles one side's collaborators, following the shape of
// blockchainctl's harness (blockchainctl/blockchain_test.go): its own
// tree/mempool/confirmed store and Manager, seeded from a chain shared
// between both sides of a test -- only the network identity used in the
// preamble (localID) differs per side, never the chain's mining identity.
type sessionHarness struct {
	cfg       *config.Config
	tree      *blocktree.BlockTree
	mempool   *mempool.PendingTransactions
	confirmed *store.Confirmed
	events    *eventbus.Events
	mgr       *Manager

	localID chaintypes.MinerID
}

// newSessionHarness seeds a tree from genesis (mined by minerID) and wires
// a Manager identifying this side as localID on the wire.
func newSessionHarness(t *testing.T, genesis *chaintypes.Block, minerID, localID chaintypes.MinerID) *sessionHarness {
	t.Helper()
	cfg := config.Default()

	confirmed, err := store.OpenConfirmed(t.TempDir(), cfg.ChunkSize, cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	require.NoError(t, err)
	t.Cleanup(func() { confirmed.Close() })
	require.NoError(t, confirmed.WriteBlock(genesis))

	mp := mempool.New(cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	tree := blocktree.New(cfg, mp)
	require.NoError(t, tree.Load([]*chaintypes.Block{genesis}, []chaintypes.MinerID{minerID}))

	events := eventbus.New()
	t.Cleanup(events.Stop)

	mgr := NewManager(cfg, tree, mp, confirmed, events, localID)

	return &sessionHarness{
		cfg: cfg, tree: tree, mempool: mp, confirmed: confirmed,
		events: events, mgr: mgr, localID: localID,
	}
}

// TestSession_CatchesUpOneBlockBehind drives a full handshake and one
// header/body catch-up round trip over an in-memory net.Pipe connection:
// the server side has mined one empty child block past genesis, the
// client side is still at genesis. After the exchange completes the
// client's tree must hold the materialized child block, delivered purely
// through GET_BLOCK_HEADER + GET_BLOCK(pieceBody) since a transactionless
// block needs no chunk or transaction round trip (spec.md §4.3: a body
// with zero chunk hashes is immediately StatusComplete once delivered).
func TestSession_CatchesUpOneBlockBehind(t *testing.T) {
	minerPub, minerPriv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	var minerID chaintypes.MinerID
	minerID[0] = 1

	cfg := config.Default()
	genesis := chaintypes.Build(chaintypes.BuildParams{
		Version:    1,
		MaxVersion: 1,
		Id:         1,
		Depth:      1,
		MinerId:    minerID,
		NextMiners: []chaintypes.MinerID{minerID},
		ChunkSize:  cfg.ChunkSize,
	}, minerPub, minerPriv)

	var serverNetID, clientNetID chaintypes.MinerID
	serverNetID[0], clientNetID[0] = 0x11, 0x22

	server := newSessionHarness(t, genesis, minerID, serverNetID)
	client := newSessionHarness(t, genesis, minerID, clientNetID)

	child := chaintypes.Build(chaintypes.BuildParams{
		Version:    1,
		MaxVersion: 1,
		Id:         2,
		Depth:      2,
		PrevHash:   genesis.Header.Hash(),
		MinerId:    minerID,
		NextMiners: []chaintypes.MinerID{minerID},
		ChunkSize:  cfg.ChunkSize,
	}, minerPub, minerPriv)

	ok, err := server.tree.AddBlock(child, "")
	require.NoError(t, err)
	require.True(t, ok)
	server.tree.UpdateActiveBranch(server.tree.GetLongestBranch())

	serverConn, clientConn := net.Pipe()

	serverDone := make(chan error, 1)
	clientDone := make(chan error, 1)
	go func() { serverDone <- server.mgr.HandleConn(serverConn, client.localID) }()
	go func() { clientDone <- client.mgr.HandleConn(clientConn, server.localID) }()

	childHash := child.Header.Hash()
	require.Eventually(t, func() bool {
		_, ok := client.tree.GetBlock(childHash)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	for _, s := range server.mgr.snapshot() {
		s.Close()
	}
	for _, s := range client.mgr.snapshot() {
		s.Close()
	}
	<-serverDone
	<-clientDone
}
