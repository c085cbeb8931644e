package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
)

func testHeader(t *testing.T, id uint32) *chaintypes.Header {
	t.Helper()
	pub, priv, err := cryptoutil.GenerateKey()
	require.NoError(t, err)
	var minerID chaintypes.MinerID
	minerID[0] = byte(id)
	h := &chaintypes.Header{
		Version:    1,
		Id:         id,
		Depth:      id,
		MinerId:    minerID,
		NextMiners: []chaintypes.MinerID{minerID},
		SignerKey:  pub,
	}
	h.Sign(priv)
	return h
}

func TestEncodeDecodeFirst(t *testing.T) {
	h := testHeader(t, 7)
	payload, err := encodeFirst(h)
	require.NoError(t, err)
	got, err := decodeFirst(payload)
	require.NoError(t, err)
	require.Equal(t, h.Hash(), got.Hash())
}

func TestEncodeDecodeIDHashes(t *testing.T) {
	ids := []blocktree.BlockIDHash{{Id: 1, Hash: [32]byte{1}}, {Id: 2, Hash: [32]byte{2}}}
	payload, err := encodeIDHashes(ids)
	require.NoError(t, err)
	got, err := decodeIDHashes(payload)
	require.NoError(t, err)
	require.Equal(t, ids, got)
}

func TestEncodeDecodeIDHashes_CapsAt100(t *testing.T) {
	ids := make([]blocktree.BlockIDHash, 150)
	for i := range ids {
		ids[i] = blocktree.BlockIDHash{Id: uint32(i)}
	}
	payload, err := encodeIDHashes(ids)
	require.NoError(t, err)
	got, err := decodeIDHashes(payload)
	require.NoError(t, err)
	require.Len(t, got, 100)
}

func TestEncodeDecodeHeaderReply_Found(t *testing.T) {
	h := testHeader(t, 3)
	payload, err := encodeHeaderReply(h)
	require.NoError(t, err)
	got, err := decodeHeaderReply(payload)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, h.Hash(), got.Hash())
}

func TestEncodeDecodeHeaderReply_NotFound(t *testing.T) {
	payload, err := encodeHeaderReply(nil)
	require.NoError(t, err)
	got, err := decodeHeaderReply(payload)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestEncodeDecodeGetBlock(t *testing.T) {
	req := getBlockRequest{Hash: [32]byte{9}, Piece: pieceChunk, ChunkIndex: 3}
	got, err := decodeGetBlock(encodeGetBlock(req))
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestEncodeDecodeGetBlockReply(t *testing.T) {
	payload, found, err := decodeGetBlockReply(encodeGetBlockReply(true, []byte("piece-bytes")))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("piece-bytes"), payload)

	_, found, err = decodeGetBlockReply(encodeGetBlockReply(false, nil))
	require.NoError(t, err)
	require.False(t, found)
}

func TestEncodeDecodeKeys(t *testing.T) {
	keys := []chaintypes.Key{testKey(1), testKey(2), testKey(3)}
	got, err := decodeKeys(encodeKeys(keys), 0)
	require.NoError(t, err)
	require.Equal(t, keys, got)
}

func TestDecodeKeys_RejectsOverMax(t *testing.T) {
	keys := make([]chaintypes.Key, 10)
	_, err := decodeKeys(encodeKeys(keys), 5)
	require.Error(t, err)
}
