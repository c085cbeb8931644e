package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/corechain/node/chaintypes"
)

// peerEntry is one line of the static trusted-peer list a permissioned
// node is started with: spec.md §6.2's peer tiers (trusted / scheduled-
// next / top-miners / others) are derived from chain state at runtime,
// but a brand new node needs at least this out-of-band bootstrap list to
// know which dial addresses belong to which miner identity -- mirrors
// the teacher's static.json / trusted-nodes.json bootstrap idiom
// (node/config.go's StaticNodesFile/TrusterNodesFile) adapted from
// enode URLs to this project's ed25519 MinerID scheme.
type peerEntry struct {
	Address string `toml:"address"`
	MinerID string `toml:"miner_id"`
}

type peerList struct {
	Peers []peerEntry `toml:"peer"`
}

// loadPeerList reads a TOML peer list from path. A missing file is not an
// error: a node can run with no configured peers and just accept/serve.
func loadPeerList(path string) (map[string]chaintypes.MinerID, error) {
	byAddr := make(map[string]chaintypes.MinerID)
	if path == "" {
		return byAddr, nil
	}
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return byAddr, nil
	}
	var list peerList
	if err := toml.NewDecoder(bytes.NewReader(raw)).Decode(&list); err != nil {
		return nil, errors.Wrap(err, "corenode: parse peer list")
	}
	for _, p := range list.Peers {
		id, err := decodeMinerID(p.MinerID)
		if err != nil {
			return nil, errors.Wrapf(err, "corenode: peer %s", p.Address)
		}
		byAddr[p.Address] = id
	}
	return byAddr, nil
}

func decodeMinerID(s string) (chaintypes.MinerID, error) {
	var id chaintypes.MinerID
	decoded, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, err
	}
	if len(decoded) != len(id) {
		return id, fmt.Errorf("miner id must be %d bytes, got %d", len(id), len(decoded))
	}
	copy(id[:], decoded)
	return id, nil
}
