package blocktree

import (
	"github.com/corechain/node/chaintypes"
)

// AddBlock validates and inserts a fully materialized block, replacing
// any PendingBlock tracked under the same header hash (spec.md §4.4).
// Returns false without error for a block that is already materialized
// (a harmless duplicate delivery).
func (bt *BlockTree) AddBlock(block *chaintypes.Block, reporter string) (bool, error) {
	if err := block.Validate(bt.cfg.ChunkSize, bt.cfg.BlockMaxTransactions, bt.cfg.BlockMaxTransactionsSize); err != nil {
		return false, err
	}

	bt.mu.Lock()

	header := block.Header
	hash := header.Hash()
	if reason, ok := bt.banned[hash]; ok {
		bt.mu.Unlock()
		return false, errBanned(reason)
	}

	existing, _, found := bt.findNodeByHashLocked(hash)
	if found && existing.HasBlock() {
		bt.mu.Unlock()
		return false, nil
	}

	info, err := bt.validateAgainstParentLocked(header)
	if err != nil {
		bt.mu.Unlock()
		return false, err
	}

	if reporter != "" {
		if slot, ok := bt.reporterAtLevel[info.childLevel][reporter]; ok && slot != hash {
			bt.mu.Unlock()
			return false, errDuplicateReporterSlot
		}
	}

	var node *Node
	if found {
		node = existing
		if node.Pending != nil {
			bt.mp.RemovePendingBlock(node.Pending)
			node.Pending = nil
		}
	} else {
		node = &Node{Header: header, Hash: hash, Reporter: reporter}
		bt.levels[info.childLevel][hash] = node
	}
	node.Block = block
	if reporter != "" {
		bt.reporterAtLevel[info.childLevel][reporter] = hash
	}

	bt.mu.Unlock()
	return true, nil
}
