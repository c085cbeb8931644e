package blockchainctl

import (
	"time"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
)

// updateBranch reconciles the store with a newly longer branch (spec.md
// §4.6): roll the unconfirmed store back to the common ancestor, replay
// the new branch one block at a time, and on any failure restore the
// previously active branch and ban the offending header.
func (bc *Blockchain) updateBranch(active, longest []*blocktree.Node) {
	common := commonPrefixLen(active, longest)

	rollbackCount := len(active) - common
	var rolledBack []*chaintypes.Block
	if rollbackCount > 0 {
		rb, err := bc.unconfirmed.Rollback(rollbackCount)
		if err != nil {
			logger.Error("updateBranch: rollback failed", "err", err)
			return
		}
		rolledBack = rb
	} else {
		bc.unconfirmed.Clear()
	}
	bc.mempool.ClearExecuted()

	var applied []*chaintypes.Block
	for i := common; i < len(longest); i++ {
		node := longest[i]
		if node.Block == nil {
			break
		}
		if err := bc.addBlock(node.Block); err != nil {
			bc.restoreAfterFailedReplay(active, common, len(applied))
			bc.tree.BanBlock(node.Hash, err.Error())
			return
		}
		applied = append(applied, node.Block)
	}

	bc.tree.UpdateActiveBranch(longest)
	bc.mu.Lock()
	bc.lastTipChangedAt = time.Now()
	bc.mu.Unlock()
	bc.events.PostBlocks(applied, len(rolledBack))

	if len(rolledBack) == 0 {
		return
	}
	var reFed []chaintypes.Transaction
	for _, block := range rolledBack {
		for _, tx := range block.Transactions {
			if !tx.IsManagement() {
				reFed = append(reFed, tx)
			}
		}
	}
	if len(reFed) > 0 {
		bc.mempool.AddExecuted(reFed)
		bc.mempool.ClearExecuted()
	}
}

// restoreAfterFailedReplay undoes the blocks applied so far this replay
// attempt and re-applies the original branch's blocks from the common
// ancestor forward, putting the store back where updateBranch found it.
func (bc *Blockchain) restoreAfterFailedReplay(active []*blocktree.Node, common, appliedCount int) {
	if appliedCount > 0 {
		if _, err := bc.unconfirmed.Rollback(appliedCount); err != nil {
			logger.Error("updateBranch: failed to unwind a failed replay", "err", err)
			return
		}
	}
	for i := common; i < len(active); i++ {
		if active[i].Block == nil {
			continue
		}
		if err := bc.addBlock(active[i].Block); err != nil {
			logger.Error("updateBranch: failed to restore the original branch", "err", err)
			return
		}
	}
}

func commonPrefixLen(a, b []*blocktree.Node) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i].Hash == b[i].Hash {
		i++
	}
	return i
}
