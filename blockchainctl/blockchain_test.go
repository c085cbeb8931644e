package blockchainctl

import (
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
	"github.com/corechain/node/verifier"
)

// harness bundles one node's worth of collaborators so every test builds
// on the same seeded genesis (a single miner with stake 1; tests fund the
// users they need themselves). White-box
// (same package as Blockchain) so tests can drive tick/addBlock/
// checkTransactions directly rather than only through Run's ticker.
type harness struct {
	cfg         *config.Config
	tree        *blocktree.BlockTree
	mempool     *mempool.PendingTransactions
	verifier    *verifier.CryptoVerifier
	confirmed   *store.Confirmed
	unconfirmed *store.Unconfirmed
	events      *eventbus.Events
	bc          *Blockchain

	minerPub  cryptoutil.PublicKey
	minerPriv cryptoutil.PrivateKey
	minerID   chaintypes.MinerID

	genesis *chaintypes.Block
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()

	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	var minerID chaintypes.MinerID
	minerID[0] = 1

	genesis := chaintypes.Build(chaintypes.BuildParams{
		Version:    1,
		MaxVersion: 1,
		Id:         1,
		Depth:      1,
		MinerId:    minerID,
		NextMiners: []chaintypes.MinerID{minerID},
		ChunkSize:  cfg.ChunkSize,
	}, pub, priv)

	confirmed, err := store.OpenConfirmed(t.TempDir(), cfg.ChunkSize, cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	require.NoError(t, err)
	t.Cleanup(func() { confirmed.Close() })
	require.NoError(t, confirmed.WriteBlock(genesis))
	require.NoError(t, confirmed.SetMiner(minerID, store.MinerInfo{Owner: minerID, Stake: 1}))

	unconfirmed := store.NewUnconfirmed(confirmed)
	mp := mempool.New(cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	tree := blocktree.New(cfg, mp)
	require.NoError(t, tree.Load([]*chaintypes.Block{genesis}, []chaintypes.MinerID{minerID}))
	v := verifier.New(2)
	t.Cleanup(v.Shutdown)
	events := eventbus.New()
	t.Cleanup(events.Stop)

	identity := Identity{MinerID: minerID, MinerPub: pub, MinerPriv: priv}
	bc := New(cfg, tree, mp, v, confirmed, unconfirmed, events, identity, time.Now().Unix())

	return &harness{
		cfg: cfg, tree: tree, mempool: mp, verifier: v,
		confirmed: confirmed, unconfirmed: unconfirmed, events: events, bc: bc,
		minerPub: pub, minerPriv: priv, minerID: minerID, genesis: genesis,
	}
}

func signedTransfer(t *testing.T, blockID uint32, from, to chaintypes.MinerID, amount uint64) *chaintypes.TransferTx {
	t.Helper()
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	tx := &chaintypes.TransferTx{BlockId: blockID, From: from, To: to, Amount: amount, Signer: pub}
	tx.Sig = cryptoutil.Sign(priv, tx.SignaturePayload())
	return tx
}

func childBlock(t *testing.T, h *harness, parent *chaintypes.Block, txs []chaintypes.Transaction) *chaintypes.Block {
	t.Helper()
	return chaintypes.Build(chaintypes.BuildParams{
		Version:      1,
		MaxVersion:   1,
		Id:           parent.Header.Id + 1,
		Depth:        parent.Header.Depth + 1,
		PrevHash:     parent.Header.Hash(),
		MinerId:      h.minerID,
		NextMiners:   []chaintypes.MinerID{h.minerID},
		Transactions: txs,
		ChunkSize:    h.cfg.ChunkSize,
	}, h.minerPub, h.minerPriv)
}

func TestTick_AppliesLoneCandidateBlock(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.confirmed.SetUserBalance(chaintypes.MinerID{9}, 100))
	to := chaintypes.MinerID{10}
	tx := signedTransfer(t, 2, chaintypes.MinerID{9}, to, 40)
	h.mempool.MarkCryptoVerified(tx.GetId().Key())

	block := childBlock(t, h, h.genesis, []chaintypes.Transaction{tx})
	_, err := h.tree.AddBlock(block, "")
	require.NoError(t, err)

	var gotBlocks []*chaintypes.Block
	h.events.OnBlocks(func(ev eventbus.BlocksEvent) { gotBlocks = ev.Blocks })

	h.bc.tick()
	require.Eventually(t, func() bool { return len(gotBlocks) == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, uint32(2), h.confirmed.GetLatestBlockId())
	require.EqualValues(t, 60, h.confirmed.GetUserBalance(chaintypes.MinerID{9}))
	require.EqualValues(t, 40, h.confirmed.GetUserBalance(to))
}

func TestAddBlock_RejectsWrongNextMiners(t *testing.T) {
	h := newHarness(t)

	block := childBlock(t, h, h.genesis, nil)
	block.Header.NextMiners = []chaintypes.MinerID{{99}}
	block.Header.Sign(h.minerPriv)

	err := h.bc.addBlock(block)
	require.Error(t, err)
}

func TestAddBlock_RejectsBadTransaction(t *testing.T) {
	h := newHarness(t)

	// Insufficient balance: genesis never funded MinerID{9}.
	bad := signedTransfer(t, 2, chaintypes.MinerID{9}, chaintypes.MinerID{10}, 40)
	h.mempool.MarkCryptoVerified(bad.GetId().Key())
	block := childBlock(t, h, h.genesis, []chaintypes.Transaction{bad})

	err := h.bc.addBlock(block)
	require.Error(t, err)
	require.Equal(t, uint32(1), h.confirmed.GetLatestBlockId())
}

func TestCheckTransactions_ExecutesVerifiedPending(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.confirmed.SetUserBalance(chaintypes.MinerID{9}, 100))

	tx := signedTransfer(t, 2, chaintypes.MinerID{9}, chaintypes.MinerID{10}, 15)
	h.mempool.Add([]chaintypes.Transaction{tx}, "")
	h.mempool.MarkCryptoVerified(tx.GetId().Key())

	h.bc.checkTransactions(time.Second)

	require.True(t, h.mempool.HasExecuted(tx.GetId().Key()))
	require.EqualValues(t, 85, h.unconfirmed.GetUserBalance(chaintypes.MinerID{9}))
}

func TestDesynced_SuppressesMiningWhenQueueIsForeign(t *testing.T) {
	self := chaintypes.MinerID{1}
	foreign := chaintypes.MinerID{2}
	queue := make([]chaintypes.MinerID, 10)
	for i := range queue {
		queue[i] = foreign
	}
	recent := []*blocktree.Node{
		{Header: &chaintypes.Header{MinerId: foreign}},
		{Header: &chaintypes.Header{MinerId: foreign}},
	}
	require.True(t, desynced(queue, recent, self))

	queue[0] = self
	require.False(t, desynced(queue, recent, self))
}

func TestInLastSlots(t *testing.T) {
	a, b, c := chaintypes.MinerID{1}, chaintypes.MinerID{2}, chaintypes.MinerID{3}
	queue := []chaintypes.MinerID{a, a, a, b, c}
	require.True(t, inLastSlots(queue, b, 2))
	require.False(t, inLastSlots(queue, a, 2))
}
