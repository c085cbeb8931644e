// Package cryptoutil wraps the ed25519 primitives spec.md §1 places
// outside the core ("the ed25519 crypto primitives" are an external
// collaborator, described only by the sign/verify surface the core
// consumes) and the hashing primitive used for header/body/transaction
// hashes, matching the teacher's hash choice across blockchain/types.
package cryptoutil

import (
	"crypto/rand"

	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/sha3"
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
	HashSize       = 32
)

type PublicKey = ed25519.PublicKey
type PrivateKey = ed25519.PrivateKey

// GenerateKey creates a new ed25519 keypair for a miner's signing identity.
func GenerateKey() (PublicKey, PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign signs msg (the header bytes without the signature field, per
// spec.md §3) with priv.
func Sign(priv PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is priv's signature over msg.
func Verify(pub PublicKey, msg, sig []byte) bool {
	if len(pub) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// Hash256 returns the sha3-256 digest used for body hashes, chunk hashes,
// and transaction content hashes throughout the wire format.
func Hash256(data ...[]byte) [HashSize]byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
