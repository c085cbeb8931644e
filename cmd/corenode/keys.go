package main

import (
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
)

// nodeIdentity is the node's mining credentials loaded (or freshly
// generated) from the key file named by the --nodekey flag, grounded on
// cmd/utils/nodecmd/gennodekeycmd.go's write-private-key-to-file idiom --
// simplified from that command's ecdsa/discover.Node shape to this
// project's ed25519 MinerID scheme.
type nodeIdentity struct {
	pub     cryptoutil.PublicKey
	priv    cryptoutil.PrivateKey
	minerID chaintypes.MinerID
}

// loadOrCreateNodeKey reads a hex-encoded ed25519 private key from path,
// or generates and persists a fresh one if the file does not exist.
func loadOrCreateNodeKey(path string) (nodeIdentity, error) {
	raw, err := ioutil.ReadFile(path)
	if err == nil {
		return decodeNodeKey(raw)
	}
	if !os.IsNotExist(err) {
		return nodeIdentity{}, errors.Wrap(err, "corenode: read node key")
	}

	pub, priv, err := cryptoutil.GenerateKey()
	if err != nil {
		return nodeIdentity{}, errors.Wrap(err, "corenode: generate node key")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nodeIdentity{}, errors.Wrap(err, "corenode: create key directory")
	}
	if err := ioutil.WriteFile(path, []byte(hex.EncodeToString(priv)), 0600); err != nil {
		return nodeIdentity{}, errors.Wrap(err, "corenode: write node key")
	}
	logger.Info("generated new node key", "path", path)
	return nodeIdentity{pub: pub, priv: priv, minerID: chaintypes.MinerIDFromPublicKey(pub)}, nil
}

func decodeNodeKey(raw []byte) (nodeIdentity, error) {
	decoded, err := hex.DecodeString(string(raw))
	if err != nil {
		return nodeIdentity{}, errors.Wrap(err, "corenode: decode node key")
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nodeIdentity{}, errors.New("corenode: node key has the wrong length")
	}
	priv := cryptoutil.PrivateKey(decoded)
	pub := priv.Public().(ed25519.PublicKey)
	return nodeIdentity{pub: pub, priv: priv, minerID: chaintypes.MinerIDFromPublicKey(pub)}, nil
}
