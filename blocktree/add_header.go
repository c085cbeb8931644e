package blocktree

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/pendingblock"
)

// AddHeader validates and inserts a new header, wiring a PendingBlock to
// it. Returns the existing pending block (and alreadyExists=true) if one
// is already tracked under this hash; returns (nil, true, nil) if the
// hash already names a materialized block.
func (bt *BlockTree) AddHeader(header *chaintypes.Header, reporter string) (*pendingblock.PendingBlock, bool, error) {
	bt.mu.Lock()

	hash := header.Hash()
	if reason, ok := bt.banned[hash]; ok {
		bt.mu.Unlock()
		return nil, false, errBanned(reason)
	}
	if n, _, found := bt.findNodeByHashLocked(hash); found {
		bt.mu.Unlock()
		if n.Pending != nil {
			return n.Pending, true, nil
		}
		return nil, true, nil
	}

	info, err := bt.validateAgainstParentLocked(header)
	if err != nil {
		bt.mu.Unlock()
		return nil, false, err
	}

	if reporter != "" {
		if existing, ok := bt.reporterAtLevel[info.childLevel][reporter]; ok && existing != hash {
			bt.mu.Unlock()
			return nil, false, errDuplicateReporterSlot
		}
	}

	node := &Node{Header: header, Hash: hash, Reporter: reporter}
	node.Pending = pendingblock.New(header, bt.cfg.ChunkSize, reporter, bt.onPendingUpdated)
	bt.levels[info.childLevel][hash] = node
	if reporter != "" {
		bt.reporterAtLevel[info.childLevel][reporter] = hash
	}

	bt.mu.Unlock()
	return node.Pending, false, nil
}
