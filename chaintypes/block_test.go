package chaintypes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
)

func buildSignedTransfer(t *testing.T, blockID uint32, from, to chaintypes.MinerID, amount uint64) *chaintypes.TransferTx {
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	tx := &chaintypes.TransferTx{BlockId: blockID, From: from, To: to, Amount: amount, Signer: pub}
	tx.Sig = cryptoutil.Sign(priv, tx.SignaturePayload())
	return tx
}

func TestBlockBuildAndValidate(t *testing.T) {
	minerPub, minerPriv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	miner := chaintypes.MinerIDFromPublicKey(minerPub)

	var from, to chaintypes.MinerID
	from[0] = 1
	to[0] = 2
	tx := buildSignedTransfer(t, 2, from, to, 100)

	nextMiners := []chaintypes.MinerID{miner}
	block := chaintypes.Build(chaintypes.BuildParams{
		Version:      1,
		MaxVersion:   1,
		Id:           2,
		Depth:        2,
		MinerId:      miner,
		NextMiners:   nextMiners,
		Transactions: []chaintypes.Transaction{tx},
		ChunkSize:    1024,
	}, minerPub, minerPriv)

	require.NoError(t, block.Validate(1024, 32768, 32<<20))
}

func TestBlockValidateRejectsBadSignature(t *testing.T) {
	minerPub, minerPriv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	miner := chaintypes.MinerIDFromPublicKey(minerPub)

	block := chaintypes.Build(chaintypes.BuildParams{
		Version:    1,
		MaxVersion: 1,
		Id:         1,
		Depth:      1,
		MinerId:    miner,
		NextMiners: []chaintypes.MinerID{miner},
		ChunkSize:  1024,
	}, minerPub, minerPriv)

	block.Header.Signature[0] ^= 0xff
	require.Error(t, block.Validate(1024, 32768, 32<<20))
}

func TestTransactionIdOrdering(t *testing.T) {
	a := chaintypes.TransactionId{Type: chaintypes.TxTypeTransfer, BlockId: 1, Size: 10, Hash: [32]byte{1}}
	b := chaintypes.TransactionId{Type: chaintypes.TxTypeTransfer, BlockId: 1, Size: 10, Hash: [32]byte{2}}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}
