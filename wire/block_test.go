package wire_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/wire"
)

func netPipe() (net.Conn, net.Conn) {
	return net.Pipe()
}

func TestBlockRoundTrip(t *testing.T) {
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	miner := chaintypes.MinerIDFromPublicKey(pub)

	var from, to chaintypes.MinerID
	from[0], to[0] = 1, 2
	txPub, txPriv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	tx := &chaintypes.TransferTx{BlockId: 5, From: from, To: to, Amount: 42, Signer: txPub}
	tx.Sig = cryptoutil.Sign(txPriv, tx.SignaturePayload())

	block := chaintypes.Build(chaintypes.BuildParams{
		Version:      1,
		MaxVersion:   1,
		Id:           5,
		Depth:        5,
		MinerId:      miner,
		NextMiners:   []chaintypes.MinerID{miner, miner},
		Transactions: []chaintypes.Transaction{tx},
		ChunkSize:    1024,
	}, pub, priv)

	encoded, err := wire.EncodeBlock(block)
	require.NoError(t, err)

	decoded, err := wire.DecodeBlock(encoded, 32<<20, 1024, 32768)
	require.NoError(t, err)

	require.Equal(t, block.Header.Hash(), decoded.Header.Hash())
	require.Equal(t, block.Body.Hash(), decoded.Body.Hash())
	require.Len(t, decoded.Transactions, 1)
	require.Equal(t, block.Transactions[0].GetId().Key(), decoded.Transactions[0].GetId().Key())
}

func TestFrameRoundTripAndKeepAlive(t *testing.T) {
	a, b := netPipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = wire.WriteFrame(a, nil, 0)
		_ = wire.WriteFrame(a, []byte("hello"), 0)
	}()

	keepAlive, err := wire.ReadFrame(b, 4<<20, 0)
	require.NoError(t, err)
	require.Nil(t, keepAlive)

	payload, err := wire.ReadFrame(b, 4<<20, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), payload)
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	a, b := netPipe()
	defer a.Close()
	defer b.Close()

	go func() { _ = wire.WriteFrame(a, make([]byte, 100), 0) }()

	_, err := wire.ReadFrame(b, 10, 0)
	require.Error(t, err)
}
