package blocktree

import (
	"github.com/pkg/errors"

	"github.com/corechain/node/chaintypes"
)

// ExpectedMinerForTip is expectedMinerLocked exported for the control
// loop's mining policy (spec.md §4.6: "the local miner is not the one
// scheduled for expected-latest-1"): tipHash must name a node already in
// the tree (or the tree's root), and skippedBlocks is the number of
// scheduling slots the caller intends to skip before the block it is
// about to produce.
func (bt *BlockTree) ExpectedMinerForTip(tipHash [32]byte, skippedBlocks int) (chaintypes.MinerID, error) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	_, level, ok := bt.findParentLocked(tipHash)
	if !ok {
		return chaintypes.MinerID{}, errors.New("blocktree: unknown tip")
	}
	return bt.expectedMinerLocked(tipHash, level, skippedBlocks)
}

// expectedMinerLocked implements spec.md §4.4's expected-miner derivation:
// given the parent (by hash/level) and the number of blocks skipped
// immediately before the new block, deterministically derive which miner
// is scheduled to produce it -- purely local, no store lookup.
func (bt *BlockTree) expectedMinerLocked(parentHash [32]byte, parentLevel int, skippedBlocks int) (chaintypes.MinerID, error) {
	parents, err := bt.ancestorHeadersLocked(parentHash, parentLevel)
	if err != nil {
		return chaintypes.MinerID{}, err
	}

	minerIndex := len(parents) + skippedBlocks
	for _, p := range parents {
		minerIndex += p.SkippedBlocks()
	}

	if minerIndex < len(bt.miningQueue) {
		return bt.miningQueue[minerIndex], nil
	}

	remaining := minerIndex - len(bt.miningQueue)
	var upcoming []chaintypes.MinerID
	for _, p := range parents {
		upcoming = append(upcoming, p.NextMiners...)
	}
	if remaining < len(upcoming) {
		return upcoming[remaining], nil
	}
	return chaintypes.MinerID{}, errors.New("blocktree: expected miner index exceeds known schedule")
}
