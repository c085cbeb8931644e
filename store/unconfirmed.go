package store

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/corechain/node/chaintypes"
)

// Unconfirmed is the tentative-execution overlay of spec.md §6.1: reads
// fall through to the Confirmed base except where a balance has been
// touched this session; writes accumulate until Commit persists them.
// Exclusively owned by the control thread (spec.md §5).
//
// Implements chaintypes.Store directly, so tx.Validate/tx.Execute run
// against it during block application (spec.md §4.6 step 6) without any
// adapter.
type Unconfirmed struct {
	mu sync.Mutex

	base *Confirmed

	deltas  map[chaintypes.MinerID]*BalanceDelta
	pending *chaintypes.Block
	txIndex map[chaintypes.Key]chaintypes.Transaction
}

// NewUnconfirmed wraps base with an empty overlay.
func NewUnconfirmed(base *Confirmed) *Unconfirmed {
	u := &Unconfirmed{base: base}
	u.resetLocked()
	return u
}

func (u *Unconfirmed) resetLocked() {
	u.deltas = make(map[chaintypes.MinerID]*BalanceDelta)
	u.pending = nil
	u.txIndex = make(map[chaintypes.Key]chaintypes.Transaction)
}

// Clear discards any tentative execution without persisting it (spec.md
// §4.6 step 3 / mining policy: "clear_executed").
func (u *Unconfirmed) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.resetLocked()
}

func (u *Unconfirmed) deltaLocked(id chaintypes.MinerID) *BalanceDelta {
	d, ok := u.deltas[id]
	if !ok {
		before := u.base.GetUserBalance(id)
		d = &BalanceDelta{Before: before, After: before}
		u.deltas[id] = d
	}
	return d
}

// chaintypes.Store surface -------------------------------------------------

func (u *Unconfirmed) GetUserBalance(id chaintypes.MinerID) uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	if d, ok := u.deltas[id]; ok {
		return d.After
	}
	return u.base.GetUserBalance(id)
}

func (u *Unconfirmed) CreditUser(id chaintypes.MinerID, amount uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deltaLocked(id).After += amount
}

func (u *Unconfirmed) DebitUser(id chaintypes.MinerID, amount uint64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	d := u.deltaLocked(id)
	if d.After < amount {
		return errors.New("store: insufficient balance")
	}
	d.After -= amount
	return nil
}

func (u *Unconfirmed) GetMinerOwner(id chaintypes.MinerID) (chaintypes.MinerID, bool) {
	return u.base.GetMinerOwner(id)
}

// AddBlock registers block as the pending, not-yet-committed unit of
// work, and indexes its transactions for GetTransaction lookups (spec.md
// §4.6 step 7, "unconfirmed_store.blocks.add(block)"). size/count must
// match the body's tally exactly.
func (u *Unconfirmed) AddBlock(block *chaintypes.Block) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	var count uint32
	var size uint64
	for _, tx := range block.Transactions {
		count++
		size += uint64(tx.GetSize())
		u.txIndex[tx.GetId().Key()] = tx
	}
	if count != block.Body.TransactionCount {
		return errors.New("store: tallied transaction count does not match body")
	}
	if size != block.Body.TransactionsSize {
		return errors.New("store: tallied transaction size does not match body")
	}
	u.pending = block
	return nil
}

// Commit persists the pending block (matching blockID) and its balance
// deltas into the confirmed store, then clears the overlay (spec.md §4.6
// step 8).
func (u *Unconfirmed) Commit(blockID uint32) error {
	u.mu.Lock()
	if u.pending == nil || u.pending.Header.Id != blockID {
		u.mu.Unlock()
		return errors.Errorf("store: no pending block %d to commit", blockID)
	}
	block := u.pending
	deltas := make(map[chaintypes.MinerID]BalanceDelta, len(u.deltas))
	for id, d := range u.deltas {
		deltas[id] = *d
	}
	u.mu.Unlock()

	if err := u.base.CommitBlock(block, deltas); err != nil {
		return err
	}

	u.mu.Lock()
	u.resetLocked()
	u.mu.Unlock()
	return nil
}

// Rollback discards any tentative work and undoes n already-committed
// blocks on the base store, returning them oldest-first (spec.md §4.6
// updateBranch).
func (u *Unconfirmed) Rollback(n int) ([]*chaintypes.Block, error) {
	u.mu.Lock()
	u.resetLocked()
	u.mu.Unlock()
	if n <= 0 {
		return nil, nil
	}
	return u.base.Rollback(n)
}

// Facade reads: fall through to base; GetLatestBlockId/Header reflect the
// pending block once added, since checkMining/addBlock need to see their
// own in-flight work immediately.

func (u *Unconfirmed) GetBlock(id uint32) (*chaintypes.Block, bool) {
	u.mu.Lock()
	if u.pending != nil && u.pending.Header.Id == id {
		defer u.mu.Unlock()
		return u.pending, true
	}
	u.mu.Unlock()
	return u.base.GetBlock(id)
}

func (u *Unconfirmed) GetBlockHeader(id uint32) (*chaintypes.Header, bool) {
	blk, ok := u.GetBlock(id)
	if !ok {
		return nil, false
	}
	return blk.Header, true
}

func (u *Unconfirmed) GetBlockBody(id uint32) (*chaintypes.Body, bool) {
	blk, ok := u.GetBlock(id)
	if !ok {
		return nil, false
	}
	return blk.Body, true
}

func (u *Unconfirmed) GetBlockTransactionIds(id uint32, chunkIndex int) ([]chaintypes.TransactionId, bool) {
	blk, ok := u.GetBlock(id)
	if !ok || chunkIndex < 0 || chunkIndex >= len(blk.IdChunks) {
		return nil, false
	}
	return blk.IdChunks[chunkIndex], true
}

func (u *Unconfirmed) GetNextBlockHeader(id uint32) (*chaintypes.Header, bool) {
	return u.GetBlockHeader(id + 1)
}

func (u *Unconfirmed) GetLatestBlockHeader() (*chaintypes.Header, bool) {
	u.mu.Lock()
	pending := u.pending
	u.mu.Unlock()
	if pending != nil {
		return pending.Header, true
	}
	return u.base.GetLatestBlockHeader()
}

func (u *Unconfirmed) GetLatestBlocks() map[uint32]*chaintypes.Block {
	out := u.base.GetLatestBlocks()
	u.mu.Lock()
	if u.pending != nil {
		out[u.pending.Header.Id] = u.pending
	}
	u.mu.Unlock()
	return out
}

func (u *Unconfirmed) GetLatestBlockId() uint32 {
	u.mu.Lock()
	pending := u.pending
	u.mu.Unlock()
	if pending != nil {
		return pending.Header.Id
	}
	return u.base.GetLatestBlockId()
}

func (u *Unconfirmed) GetMinersQueue() []chaintypes.MinerID {
	u.mu.Lock()
	pending := u.pending
	u.mu.Unlock()
	if pending != nil {
		return append([]chaintypes.MinerID{}, pending.Header.NextMiners...)
	}
	return u.base.GetMinersQueue()
}

func (u *Unconfirmed) GetTransaction(key chaintypes.Key) (chaintypes.Transaction, bool) {
	u.mu.Lock()
	tx, ok := u.txIndex[key]
	u.mu.Unlock()
	if ok {
		return tx, true
	}
	return u.base.GetTransaction(key)
}

func (u *Unconfirmed) GetTransactionWithBlockId(key chaintypes.Key) (chaintypes.Transaction, uint32, bool) {
	u.mu.Lock()
	tx, ok := u.txIndex[key]
	pendingID := uint32(0)
	if u.pending != nil {
		pendingID = u.pending.Header.Id
	}
	u.mu.Unlock()
	if ok {
		return tx, pendingID, true
	}
	return u.base.GetTransactionWithBlockId(key)
}

func (u *Unconfirmed) GetNewTransactionsCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.txIndex)
}

func (u *Unconfirmed) GetNewTransactionsSize() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	var size int64
	for _, tx := range u.txIndex {
		size += int64(tx.GetSize())
	}
	return size
}

func (u *Unconfirmed) GetMiner(id chaintypes.MinerID) (MinerInfo, bool) { return u.base.GetMiner(id) }
func (u *Unconfirmed) GetTopMiners() []MinerStake                     { return u.base.GetTopMiners() }
func (u *Unconfirmed) GetStakedTokens() uint64                        { return u.base.GetStakedTokens() }
func (u *Unconfirmed) GetMinerEndpoints() map[chaintypes.MinerID]string {
	return u.base.GetMinerEndpoints()
}

func (u *Unconfirmed) GetUser(id chaintypes.MinerID) (UserInfo, bool) {
	u.mu.Lock()
	if d, ok := u.deltas[id]; ok {
		u.mu.Unlock()
		return UserInfo{Balance: d.After}, true
	}
	u.mu.Unlock()
	return u.base.GetUser(id)
}

func (u *Unconfirmed) PreloadUser(id chaintypes.MinerID) { u.base.PreloadUser(id) }
func (u *Unconfirmed) GetUsersCount() int                { return u.base.GetUsersCount() }
func (u *Unconfirmed) GetTokens() uint64                 { return u.base.GetTokens() }
func (u *Unconfirmed) GetPricing() Pricing               { return u.base.GetPricing() }
