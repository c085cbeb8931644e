package pendingblock_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/pendingblock"
)

func buildSignedBlock(t *testing.T, n int) *chaintypes.Block {
	t.Helper()
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	miner := chaintypes.MinerIDFromPublicKey(pub)

	var txs []chaintypes.Transaction
	for i := 0; i < n; i++ {
		txPub, txPriv, err := cryptoutil.GenerateKey()
		require.NoError(t, err)
		var from, to chaintypes.MinerID
		from[0] = byte(i + 1)
		to[0] = byte(i + 2)
		tx := &chaintypes.TransferTx{BlockId: 2, From: from, To: to, Amount: uint64(i + 1), Signer: txPub}
		tx.Sig = cryptoutil.Sign(txPriv, tx.SignaturePayload())
		txs = append(txs, tx)
	}

	return chaintypes.Build(chaintypes.BuildParams{
		Version:      1,
		MaxVersion:   1,
		Id:           2,
		Depth:        2,
		MinerId:      miner,
		NextMiners:   []chaintypes.MinerID{miner},
		Transactions: txs,
		ChunkSize:    2,
	}, pub, priv)
}

func TestPendingBlockProgressesThroughStatuses(t *testing.T) {
	block := buildSignedBlock(t, 3) // chunkSize 2 -> 2 chunks (2, 1)

	var updates int
	var lastStatus pendingblock.Status
	pb := pendingblock.New(block.Header, 2, "local", func(p *pendingblock.PendingBlock) {
		updates++
		lastStatus = p.Status()
	})
	require.Equal(t, pendingblock.StatusMissingBody, pb.Status())

	require.Equal(t, pendingblock.Correct, pb.AddBody(block.Body))
	require.Equal(t, pendingblock.StatusMissingTransactionIDs, pb.Status())
	require.Equal(t, 1, updates)
	require.Equal(t, pendingblock.StatusMissingTransactionIDs, lastStatus)

	require.Equal(t, pendingblock.Duplicated, pb.AddBody(block.Body))
	require.Equal(t, 1, updates) // no state change, no callback

	require.Equal(t, pendingblock.Correct, pb.AddChunks(block.IdChunks))
	require.Equal(t, pendingblock.StatusMissingTransactions, pb.Status())
	require.Equal(t, 2, updates)

	require.Equal(t, pendingblock.Duplicated, pb.AddChunks(block.IdChunks))
	require.Equal(t, 2, updates)

	allButLast := block.Transactions[:len(block.Transactions)-1]
	require.Equal(t, pendingblock.Correct, pb.AddTransactionsResult(allButLast))
	require.Equal(t, pendingblock.StatusMissingTransactions, pb.Status())
	require.Equal(t, 2, updates)

	last := block.Transactions[len(block.Transactions)-1:]
	require.Equal(t, pendingblock.Correct, pb.AddTransactionsResult(last))
	require.Equal(t, pendingblock.StatusComplete, pb.Status())
	require.Equal(t, 3, updates)

	require.Equal(t, pendingblock.Duplicated, pb.AddTransactionsResult(last))
	require.Equal(t, 3, updates)

	built, ok := pb.CreateBlock()
	require.True(t, ok)
	require.Equal(t, block.Header.Hash(), built.Header.Hash())
	require.Equal(t, len(block.Transactions), len(built.Transactions))
	for i := range block.Transactions {
		require.Equal(t, block.Transactions[i].GetId().Key(), built.Transactions[i].GetId().Key())
	}
}

func TestPendingBlockRejectsUnknownChunkAndTransaction(t *testing.T) {
	block := buildSignedBlock(t, 1)
	pb := pendingblock.New(block.Header, 1024, "local", nil)
	require.Equal(t, pendingblock.Correct, pb.AddBody(block.Body))

	var bogusID chaintypes.MinerID
	bogusID[0] = 0xff
	bogusTx := &chaintypes.TransferTx{BlockId: 99, From: bogusID, To: bogusID}
	require.Equal(t, pendingblock.InvalidData, pb.AddChunks([][]chaintypes.TransactionId{{bogusTx.GetId()}}))

	// Status still MISSING_TRANSACTION_IDS: the bogus chunk never matched.
	require.Equal(t, pendingblock.StatusMissingTransactionIDs, pb.Status())
}

func TestPendingBlockInvalidDominatesExpiredAndFinished(t *testing.T) {
	block := buildSignedBlock(t, 0)
	pb := pendingblock.New(block.Header, 1024, "local", nil)
	pb.SetInvalid("bad signature")
	require.Equal(t, pendingblock.StatusInvalid, pb.Status())

	pb.SetFinished()
	require.Equal(t, pendingblock.StatusInvalid, pb.Status())

	pb.SetExpired()
	require.Equal(t, pendingblock.StatusInvalid, pb.Status())
}

func TestMissingTransactionIDsSatisfiesSinkInterface(t *testing.T) {
	block := buildSignedBlock(t, 2)
	pb := pendingblock.New(block.Header, 1024, "local", nil)
	pb.AddBody(block.Body)
	pb.AddChunks(block.IdChunks)

	missing := pb.MissingTransactionIDs()
	require.Len(t, missing, 2)

	pb.AddTransactions(block.Transactions)
	require.Equal(t, pendingblock.StatusComplete, pb.Status())
}
