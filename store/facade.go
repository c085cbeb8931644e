// Package store implements the persistent-store contract of spec.md §6.1:
// a confirmed facade backed by LevelDB (grounded on the teacher's
// storage/database/leveldb_database.go wrapper and its NewLDBDatabase
// constructor/metrics-meter shape) and an unconfirmed facade layered over
// it in memory, the tentative-execution surface checkMining and addBlock
// read and write through before a block is committed.
//
// Serialization reuses package wire's EncodeBlock/DecodeBlock rather than
// the teacher's RLP codec (ser/rlp), for the same reason wire itself does
// not use RLP: block bytes must match the wire protocol's own encoding so
// a block read back out of the store and a block received over the
// network are byte-identical (see DESIGN.md).
package store

import "github.com/corechain/node/chaintypes"

// MinerInfo is the miners facade's per-miner record (spec.md §6.1).
type MinerInfo struct {
	Owner    chaintypes.MinerID
	Stake    uint64
	Endpoint string
}

// UserInfo is the users facade's per-user record.
type UserInfo struct {
	Balance uint64
}

// Pricing is the state facade's single record.
type Pricing struct {
	BytePrice uint64
}

// BlockReader is the "blocks" facade of spec.md §6.1.
type BlockReader interface {
	GetBlock(id uint32) (*chaintypes.Block, bool)
	GetBlockHeader(id uint32) (*chaintypes.Header, bool)
	GetBlockBody(id uint32) (*chaintypes.Body, bool)
	GetBlockTransactionIds(id uint32, chunkIndex int) ([]chaintypes.TransactionId, bool)
	GetNextBlockHeader(id uint32) (*chaintypes.Header, bool)
	GetLatestBlockHeader() (*chaintypes.Header, bool)
	GetLatestBlocks() map[uint32]*chaintypes.Block
	GetLatestBlockId() uint32
	GetMinersQueue() []chaintypes.MinerID
}

// TransactionReader is the "transactions" facade.
type TransactionReader interface {
	GetTransaction(id chaintypes.Key) (chaintypes.Transaction, bool)
	GetTransactionWithBlockId(id chaintypes.Key) (chaintypes.Transaction, uint32, bool)
	GetNewTransactionsCount() int
	GetNewTransactionsSize() int64
}

// MinerReader is the "miners" facade.
type MinerReader interface {
	GetMiner(id chaintypes.MinerID) (MinerInfo, bool)
	GetTopMiners() []MinerStake
	GetStakedTokens() uint64
	GetMinerEndpoints() map[chaintypes.MinerID]string
}

// MinerStake mirrors roundrobin.MinerStake without importing roundrobin
// from store (store is a lower-level package than roundrobin's caller,
// blockchainctl, which converts between the two).
type MinerStake struct {
	ID    chaintypes.MinerID
	Stake uint64
}

// UserReader is the "users" facade.
type UserReader interface {
	GetUser(id chaintypes.MinerID) (UserInfo, bool)
	PreloadUser(id chaintypes.MinerID)
	GetUsersCount() int
	GetTokens() uint64
}

// StateReader is the "state" facade.
type StateReader interface {
	GetPricing() Pricing
}

// Facade is the full read surface spec.md §6.1 gives the core over either
// the confirmed or the unconfirmed store.
type Facade interface {
	BlockReader
	TransactionReader
	MinerReader
	UserReader
	StateReader
}
