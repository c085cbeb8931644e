package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeMinerIDRoundTrip(t *testing.T) {
	id, err := decodeMinerID("0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	require.Equal(t, byte(0x01), id[0])
	require.Equal(t, byte(0x14), id[19])
}

func TestDecodeMinerIDAcceptsHexPrefix(t *testing.T) {
	_, err := decodeMinerID("0x0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
}

func TestDecodeMinerIDRejectsWrongLength(t *testing.T) {
	_, err := decodeMinerID("0102")
	require.Error(t, err)
}

func TestLoadPeerListParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.toml")
	contents := `
[[peer]]
address = "127.0.0.1:30700"
miner_id = "0102030405060708090a0b0c0d0e0f1011121314"

[[peer]]
address = "127.0.0.1:30701"
miner_id = "1112030405060708090a0b0c0d0e0f101112131f"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	peers, err := loadPeerList(path)
	require.NoError(t, err)
	require.Len(t, peers, 2)

	id, ok := peers["127.0.0.1:30700"]
	require.True(t, ok)
	require.Equal(t, byte(0x01), id[0])
}

func TestLoadPeerListEmptyPathReturnsEmptyMap(t *testing.T) {
	peers, err := loadPeerList("")
	require.NoError(t, err)
	require.Empty(t, peers)
}

func TestLoadPeerListMissingFileReturnsEmptyMap(t *testing.T) {
	peers, err := loadPeerList(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Empty(t, peers)
}
