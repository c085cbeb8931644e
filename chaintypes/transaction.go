package chaintypes

import "github.com/corechain/node/cryptoutil"

// Store is the minimal persistent-store surface a transaction needs to
// validate/execute against, per spec.md §6.1. The real store is an
// external collaborator; core code only ever sees this interface.
type Store interface {
	GetUserBalance(userID MinerID) uint64
	CreditUser(userID MinerID, amount uint64)
	DebitUser(userID MinerID, amount uint64) error
	GetMinerOwner(minerID MinerID) (MinerID, bool)
}

// Transaction is the surface spec.md §1 says the core consumes from the
// (externally-defined) transaction object hierarchy: validate, execute,
// getId, getSize, getUserId, validateSignatures, getType. Concrete
// variants are selected by GetType()'s tag, not by interface embedding --
// see Design Notes §9 ("replace the virtual-class hierarchy with a tagged
// variant").
type Transaction interface {
	GetType() TxType
	GetId() TransactionId
	GetSize() uint16
	GetUserId() MinerID
	ValidateSignatures() bool
	Validate(blockId uint32, store Store) error
	Execute(blockId uint32, store Store) error
	// IsManagement reports whether this transaction is a protocol-internal
	// transaction (Init/Commit) rather than user-submitted; used by
	// updateBranch's "re-feed non-management transactions" step
	// (spec.md §4.6).
	IsManagement() bool
}

// Signed is implemented by transactions that carry an ed25519 signature.
// SignaturePayload returns the bytes a transaction's signature covers.
type Signed interface {
	Signature() []byte
	SignaturePayload() []byte
	SignerPublicKey() cryptoutil.PublicKey
}
