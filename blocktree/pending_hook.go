package blocktree

import (
	"github.com/corechain/node/pendingblock"
)

// onPendingUpdated is PendingBlock's on_updated callback (spec.md §4.4).
// It releases bt.mu before calling mempool.AddPendingBlock, re-validating
// a completed block, or removing a completed block from the mempool, so a
// recursive callback triggered by that call (e.g. mempool.AddPendingBlock
// delivering an already-pending transaction synchronously) never re-enters
// a held lock. The ban paths are the exception: banBlockLocked's orphan
// cleanup calls mempool.RemovePendingBlock with bt.mu held, which does not
// call back into the tree.
func (bt *BlockTree) onPendingUpdated(pb *pendingblock.PendingBlock) {
	hash := pb.Hash()
	status := pb.Status()

	bt.mu.Lock()
	node, _, found := bt.findNodeByHashLocked(hash)
	if !found || status == pendingblock.StatusExpired {
		bt.mu.Unlock()
		return
	}

	switch status {
	case pendingblock.StatusInvalid:
		bt.banBlockLocked(hash, "pending block marked invalid")
		bt.mu.Unlock()
		return

	case pendingblock.StatusMissingTransactions:
		if node.hasLockedTransactions {
			bt.mu.Unlock()
			return
		}
		node.hasLockedTransactions = true
		bt.mu.Unlock()
		bt.mp.AddPendingBlock(pb)
		return

	case pendingblock.StatusComplete:
		built, ok := pb.CreateBlock()
		bt.mu.Unlock()
		if !ok {
			return
		}
		if err := built.Validate(bt.cfg.ChunkSize, bt.cfg.BlockMaxTransactions, bt.cfg.BlockMaxTransactionsSize); err != nil {
			bt.mu.Lock()
			bt.banBlockLocked(hash, "re-validation failed: "+err.Error())
			bt.mu.Unlock()
			pb.SetInvalid(err.Error())
			return
		}

		bt.mu.Lock()
		if n, _, ok := bt.findNodeByHashLocked(hash); ok {
			n.Block = built
			n.Pending = nil
		}
		bt.mu.Unlock()

		bt.mp.RemovePendingBlock(pb)
		pb.SetFinished()
		return

	default:
		bt.mu.Unlock()
	}
}
