package blocktree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/pendingblock"
)

func buildRoot(t *testing.T, miner chaintypes.MinerID, pub cryptoutil.PublicKey, priv cryptoutil.PrivateKey) *chaintypes.Block {
	t.Helper()
	return chaintypes.Build(chaintypes.BuildParams{
		Version:    1,
		MaxVersion: 1,
		Id:         1,
		Depth:      1,
		MinerId:    miner,
		NextMiners: []chaintypes.MinerID{miner},
		ChunkSize:  10,
	}, pub, priv)
}

func signedTransfer(t *testing.T, blockID uint32, amount uint64) *chaintypes.TransferTx {
	t.Helper()
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	var from, to chaintypes.MinerID
	from[0], to[0] = 9, 10
	tx := &chaintypes.TransferTx{BlockId: blockID, From: from, To: to, Amount: amount, Signer: pub}
	tx.Sig = cryptoutil.Sign(priv, tx.SignaturePayload())
	return tx
}

func setup(t *testing.T) (*blocktree.BlockTree, *mempool.PendingTransactions, chaintypes.MinerID, cryptoutil.PublicKey, cryptoutil.PrivateKey, *chaintypes.Block) {
	t.Helper()
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	miner := chaintypes.MinerIDFromPublicKey(pub)

	cfg := config.Default()
	mp := mempool.New(cfg.BlockMaxTransactions, cfg.BlockMaxTransactionsSize)
	bt := blocktree.New(cfg, mp)

	root := buildRoot(t, miner, pub, priv)
	queue := make([]chaintypes.MinerID, cfg.MinersQueueSize)
	for i := range queue {
		queue[i] = miner
	}
	require.NoError(t, bt.Load([]*chaintypes.Block{root}, queue))
	return bt, mp, miner, pub, priv, root
}

func TestAddHeaderThenDeliverBodyChunksTransactionsMaterializesBlock(t *testing.T) {
	bt, mp, miner, pub, priv, root := setup(t)

	tx := signedTransfer(t, 2, 7)
	child := chaintypes.Build(chaintypes.BuildParams{
		Version: 1, MaxVersion: 1, Id: 2, Depth: 2,
		PrevHash: root.Header.Hash(), MinerId: miner,
		NextMiners:   []chaintypes.MinerID{miner},
		Transactions: []chaintypes.Transaction{tx},
		ChunkSize:    10,
	}, pub, priv)

	pb, alreadyExists, err := bt.AddHeader(child.Header, "peer1")
	require.NoError(t, err)
	require.False(t, alreadyExists)
	require.Equal(t, pendingblock.StatusMissingBody, pb.Status())

	require.Equal(t, pendingblock.Correct, pb.AddBody(child.Body))
	require.Equal(t, pendingblock.Correct, pb.AddChunks(child.IdChunks))
	require.Equal(t, pendingblock.StatusMissingTransactions, pb.Status())

	hash := child.Header.Hash()
	require.False(t, bt.HasBlock(hash))

	mp.Add([]chaintypes.Transaction{tx}, "peer1")

	require.True(t, bt.HasBlock(hash))
	_, pending := bt.GetPendingBlock(hash)
	require.False(t, pending)
}

func TestAddHeaderRejectsWrongScheduledMiner(t *testing.T) {
	bt, _, _, _, _, root := setup(t)

	otherPub, otherPriv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	other := chaintypes.MinerIDFromPublicKey(otherPub)

	child := chaintypes.Build(chaintypes.BuildParams{
		Version: 1, MaxVersion: 1, Id: 2, Depth: 2,
		PrevHash: root.Header.Hash(), MinerId: other,
		NextMiners: []chaintypes.MinerID{other},
		ChunkSize:  10,
	}, otherPub, otherPriv)

	_, _, err = bt.AddHeader(child.Header, "peer1")
	require.Error(t, err)
}

func TestDuplicateReporterSlotRejected(t *testing.T) {
	bt, _, miner, pub, priv, root := setup(t)

	first := chaintypes.Build(chaintypes.BuildParams{
		Version: 1, MaxVersion: 1, Id: 2, Depth: 2,
		PrevHash: root.Header.Hash(), MinerId: miner,
		NextMiners: []chaintypes.MinerID{miner}, ChunkSize: 10,
	}, pub, priv)
	_, _, err := bt.AddHeader(first.Header, "peer1")
	require.NoError(t, err)

	// A second, distinct header at the SAME level from the same reporter
	// must be rejected: at most one unexecuted reported block per level.
	second := chaintypes.Build(chaintypes.BuildParams{
		Version: 1, MaxVersion: 2, Id: 2, Depth: 2,
		PrevHash: root.Header.Hash(), MinerId: miner,
		NextMiners: []chaintypes.MinerID{miner}, ChunkSize: 10,
	}, pub, priv)
	_, _, err = bt.AddHeader(second.Header, "peer1")
	require.Error(t, err)
}

func TestBanBlockRemovesNodeAndBansReporter(t *testing.T) {
	bt, _, miner, pub, priv, root := setup(t)

	child := chaintypes.Build(chaintypes.BuildParams{
		Version: 1, MaxVersion: 1, Id: 2, Depth: 2,
		PrevHash: root.Header.Hash(), MinerId: miner,
		NextMiners: []chaintypes.MinerID{miner}, ChunkSize: 10,
	}, pub, priv)
	_, _, err := bt.AddHeader(child.Header, "peer1")
	require.NoError(t, err)

	hash := child.Header.Hash()
	bt.BanBlock(hash, "test ban")
	require.True(t, bt.IsBanned(hash, ""))
	require.True(t, bt.IsBanned([32]byte{}, "peer1"))

	_, found := bt.GetPendingBlock(hash)
	require.False(t, found)
}

func TestActiveAndLongestBranchAfterUpdate(t *testing.T) {
	bt, mp, miner, pub, priv, root := setup(t)

	tx := signedTransfer(t, 2, 3)
	child := chaintypes.Build(chaintypes.BuildParams{
		Version: 1, MaxVersion: 1, Id: 2, Depth: 2,
		PrevHash: root.Header.Hash(), MinerId: miner,
		NextMiners:   []chaintypes.MinerID{miner},
		Transactions: []chaintypes.Transaction{tx},
		ChunkSize:    10,
	}, pub, priv)

	pb, _, err := bt.AddHeader(child.Header, "")
	require.NoError(t, err)
	pb.AddBody(child.Body)
	pb.AddChunks(child.IdChunks)
	mp.Add([]chaintypes.Transaction{tx}, "local")

	require.Empty(t, bt.GetActiveBranch())
	longest := bt.GetLongestBranch()
	require.Len(t, longest, 1)
	require.Equal(t, child.Header.Hash(), longest[0].Hash)

	bt.UpdateActiveBranch(longest)
	active := bt.GetActiveBranch()
	require.Len(t, active, 1)
	require.True(t, active[0].Executed)
}
