package blockchainctl

import (
	"time"

	"github.com/corechain/node/chaintypes"
)

// checkTransactions executes pending transactions against the unconfirmed
// store for up to budget, the tick's lowest-priority action (spec.md §4.6
// step 3). Transactions that fail validation are dropped from the pool;
// everything else that succeeds moves from pending to executed so a
// later checkMining or updateBranch sees it already applied.
//
// GetPending never removes what it returns, so this makes exactly one
// pass over its snapshot -- a transaction only leaves "pending" once
// AddExecuted/Remove runs, which happens after the loop, not inside it.
func (bc *Blockchain) checkTransactions(budget time.Duration) {
	deadline := time.Now().Add(budget)
	latest, ok := bc.unconfirmed.GetLatestBlockHeader()
	if !ok {
		return
	}
	blockID := latest.Id + 1

	var executed []chaintypes.Transaction
	var bad []chaintypes.Key
	for _, tx := range bc.mempool.GetPending(0) {
		if time.Now().After(deadline) {
			break
		}
		if !bc.mempool.IsCryptoVerified(tx.GetId().Key()) {
			continue
		}
		if err := tx.Validate(blockID, bc.unconfirmed); err != nil {
			bad = append(bad, tx.GetId().Key())
			continue
		}
		if err := tx.Execute(blockID, bc.unconfirmed); err != nil {
			bad = append(bad, tx.GetId().Key())
			continue
		}
		executed = append(executed, tx)
	}

	if len(bad) > 0 {
		bc.mempool.Remove(bad)
	}
	if len(executed) > 0 {
		bc.mempool.AddExecuted(executed)
	}
}

// processPendingTransactions is checkMining's tx-selection pass: validate
// and execute pending transactions into a candidate block body, bounded
// by the block's size limits (minus headroom for the reward transaction)
// and by deadline (spec.md §4.6: "up to kBlockMaxTransactions-1, up to
// kBlockMaxTransactionsSize-1024 bytes, with 2 s deadline"). A single pass
// over one GetPending snapshot, for the same reason checkTransactions is:
// nothing leaves "pending" mid-loop.
func (bc *Blockchain) processPendingTransactions(deadlineFromNow time.Duration) []chaintypes.Transaction {
	deadline := time.Now().Add(deadlineFromNow)
	latest, ok := bc.unconfirmed.GetLatestBlockHeader()
	if !ok {
		return nil
	}
	blockID := latest.Id + 1

	maxCount := bc.cfg.BlockMaxTransactions - 1
	maxSize := bc.cfg.BlockMaxTransactionsSize - 1024

	var included []chaintypes.Transaction
	var size int64
	var dropped []chaintypes.Key

	for _, tx := range bc.mempool.GetPending(0) {
		if len(included) >= maxCount || time.Now().After(deadline) {
			break
		}
		if !bc.mempool.IsCryptoVerified(tx.GetId().Key()) {
			continue
		}
		if size+int64(tx.GetSize()) > maxSize {
			continue
		}
		if err := tx.Validate(blockID, bc.unconfirmed); err != nil {
			dropped = append(dropped, tx.GetId().Key())
			continue
		}
		if err := tx.Execute(blockID, bc.unconfirmed); err != nil {
			dropped = append(dropped, tx.GetId().Key())
			continue
		}
		included = append(included, tx)
		size += int64(tx.GetSize())
	}

	if len(dropped) > 0 {
		bc.mempool.Remove(dropped)
	}
	return included
}
