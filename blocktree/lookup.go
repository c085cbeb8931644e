package blocktree

import "github.com/corechain/node/chaintypes"

// GetBlock returns the materialized block stored under hash, if any --
// used to answer a peer's GET_BLOCK request for a block this node has
// already assembled but may not yet have executed (spec.md §4.5 step 3).
func (bt *BlockTree) GetBlock(hash [32]byte) (*chaintypes.Block, bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	n, _, ok := bt.findNodeByHashLocked(hash)
	if !ok || n.Block == nil {
		return nil, false
	}
	return n.Block, true
}
