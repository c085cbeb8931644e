package mempool_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/mempool"
)

func makeTransfer(t *testing.T, nonceByte byte, amount uint64) *chaintypes.TransferTx {
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	var from, to chaintypes.MinerID
	from[0] = nonceByte
	to[0] = nonceByte + 1
	tx := &chaintypes.TransferTx{BlockId: 1, From: from, To: to, Amount: amount, Signer: pub}
	tx.Sig = cryptoutil.Sign(priv, tx.SignaturePayload())
	return tx
}

type fakeSink struct {
	missing   []chaintypes.Key
	delivered []chaintypes.Transaction
}

func (f *fakeSink) MissingTransactionIDs() []chaintypes.Key { return f.missing }
func (f *fakeSink) AddTransactions(txs []chaintypes.Transaction) {
	f.delivered = append(f.delivered, txs...)
}

func TestAddAndGetPending(t *testing.T) {
	p := mempool.New(32768, 32<<20)
	tx1 := makeTransfer(t, 1, 10)
	tx2 := makeTransfer(t, 3, 20)

	n := p.Add([]chaintypes.Transaction{tx1, tx2}, "local")
	require.Equal(t, 2, n)

	// Re-adding is not "genuinely new".
	n = p.Add([]chaintypes.Transaction{tx1}, "local")
	require.Equal(t, 0, n)

	pending := p.GetPending(0)
	require.Len(t, pending, 2)
	require.Equal(t, tx1.GetId().Key(), pending[0].GetId().Key())
}

func TestPendingExecutedDisjointAndClearExecuted(t *testing.T) {
	p := mempool.New(32768, 32<<20)
	tx1 := makeTransfer(t, 1, 10)
	tx2 := makeTransfer(t, 3, 20)
	p.Add([]chaintypes.Transaction{tx1, tx2}, "local")

	// Simulate mining: move tx1 into executed and drop it from pending,
	// as the control loop would when it consumes from GetPending and then
	// records execution.
	p.Remove([]chaintypes.Key{tx1.GetId().Key()})
	p.AddExecuted([]chaintypes.Transaction{tx1})

	require.True(t, p.HasExecuted(tx1.GetId().Key()))
	_, pendingStillHasTx1 := p.Get(tx1.GetId().Key())
	require.True(t, pendingStillHasTx1) // Get() checks both maps

	pendingCount, executedCount := p.Len()
	require.Equal(t, 1, pendingCount)
	require.Equal(t, 1, executedCount)

	p.ClearExecuted()
	pendingCount, executedCount = p.Len()
	require.Equal(t, 2, pendingCount)
	require.Equal(t, 0, executedCount)

	// tx1 (the formerly-executed one) must be at the front.
	front := p.GetPending(1)
	require.Equal(t, tx1.GetId().Key(), front[0].GetId().Key())
}

func TestAddPendingBlockDeliversKnownAndRegistersMissing(t *testing.T) {
	p := mempool.New(32768, 32<<20)
	tx1 := makeTransfer(t, 1, 10)
	tx2 := makeTransfer(t, 3, 20)
	p.Add([]chaintypes.Transaction{tx1}, "local")

	sink := &fakeSink{missing: []chaintypes.Key{tx1.GetId().Key(), tx2.GetId().Key()}}
	p.AddPendingBlock(sink)

	require.Len(t, sink.delivered, 1)
	require.Equal(t, tx1.GetId().Key(), sink.delivered[0].GetId().Key())

	// tx2 arrives later via gossip; the registered request should deliver it.
	p.Add([]chaintypes.Transaction{tx2}, "peer")
	require.Len(t, sink.delivered, 2)

	p.RemovePendingBlock(sink)
	// A second delivery of tx2 should not re-trigger since the request was dropped.
	sink.delivered = nil
	p.Add([]chaintypes.Transaction{tx2}, "peer")
	require.Empty(t, sink.delivered)
}

func TestCanAddRespectsLimitsAndRequestedBypass(t *testing.T) {
	p := mempool.New(2, 1000)
	tx1 := makeTransfer(t, 1, 10)
	tx2 := makeTransfer(t, 3, 20)
	p.Add([]chaintypes.Transaction{tx1, tx2}, "local")

	// 2*maxCount == 4, so a third/fourth fit, a fifth does not.
	tx3 := makeTransfer(t, 5, 30)
	require.True(t, p.CanAdd(tx3.GetId().Key(), tx3.GetSize()))

	tx4 := makeTransfer(t, 7, 40)
	sink := &fakeSink{missing: []chaintypes.Key{tx4.GetId().Key()}}
	p.AddPendingBlock(sink)
	require.True(t, p.CanAdd(tx4.GetId().Key(), tx4.GetSize()))
}
