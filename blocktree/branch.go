package blocktree

import "github.com/corechain/node/roundrobin"

// GetActiveBranch walks each level from 0 upward, picking the one node
// marked executed; it stops at the first level with no executed node
// (spec.md §4.6).
func (bt *BlockTree) GetActiveBranch() []*Node {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	var branch []*Node
	for _, level := range bt.levels {
		var found *Node
		for _, n := range level {
			if n.Executed {
				found = n
				break
			}
		}
		if found == nil {
			break
		}
		branch = append(branch, found)
	}
	return branch
}

// GetLongestBranch starts from the deepest non-empty level and tries to
// walk a complete, materialized chain back to the root; ties prefer an
// executed node; the first viable chain found (deepest first) wins
// (spec.md §4.6).
func (bt *BlockTree) GetLongestBranch() []*Node {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	deepest := -1
	for lvl := len(bt.levels) - 1; lvl >= 0; lvl-- {
		if len(bt.levels[lvl]) > 0 {
			deepest = lvl
			break
		}
	}
	if deepest == -1 {
		return nil
	}

	for lvl := deepest; lvl >= 0; lvl-- {
		candidates := make([]*Node, 0, len(bt.levels[lvl]))
		for _, n := range bt.levels[lvl] {
			if n.HasBlock() {
				candidates = append(candidates, n)
			}
		}
		// Executed nodes first, so a tie prefers one already executed.
		sortExecutedFirst(candidates)
		for _, n := range candidates {
			if chain, ok := bt.walkToRootLocked(n, lvl); ok {
				return chain
			}
		}
	}
	return nil
}

func sortExecutedFirst(nodes []*Node) {
	j := 0
	for i, n := range nodes {
		if n.Executed {
			nodes[i], nodes[j] = nodes[j], nodes[i]
			j++
		}
	}
}

func (bt *BlockTree) walkToRootLocked(tip *Node, tipLevel int) ([]*Node, bool) {
	chain := make([]*Node, tipLevel+1)
	chain[tipLevel] = tip
	curHash := tip.Header.PrevHash
	for lvl := tipLevel - 1; lvl >= 0; lvl-- {
		n, ok := bt.levels[lvl][curHash]
		if !ok || !n.HasBlock() {
			return nil, false
		}
		chain[lvl] = n
		curHash = n.Header.PrevHash
	}
	if curHash != bt.baseHash {
		return nil, false
	}
	return chain, true
}

// UpdateActiveBranch declaratively replaces the active branch with
// newBranch: marks all prior nodes un-executed, (re)marks newBranch's
// nodes executed, then -- if the branch now exceeds
// kDatabaseRollbackableBlocks+1 -- rolls the root forward by one level,
// folding the dropped root's nextMiners into the mining queue, and cleans
// up newly orphaned siblings (spec.md §4.4).
func (bt *BlockTree) UpdateActiveBranch(newBranch []*Node) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	for _, level := range bt.levels {
		for _, n := range level {
			n.Executed = false
		}
	}
	for i, n := range newBranch {
		n.Executed = true
		bt.levels[i][n.Hash] = n
	}

	if len(newBranch) > bt.cfg.DatabaseRollbackBlocks+1 {
		root := newBranch[0]
		bt.baseHeader = root.Header
		bt.baseHash = root.Hash
		bt.miningQueue = roundrobin.TrimToSize(bt.miningQueue, root.Header.NextMiners, bt.cfg.MinersQueueSize)

		copy(bt.levels, bt.levels[1:])
		copy(bt.reporterAtLevel, bt.reporterAtLevel[1:])
		bt.levels[len(bt.levels)-1] = make(map[[32]byte]*Node)
		bt.reporterAtLevel[len(bt.reporterAtLevel)-1] = make(map[string][32]byte)
	}

	bt.cleanOrphansLocked()
}

// GetBlockIDsAndHashes returns (block id, header hash) pairs for every
// executed-or-candidate node, ordered deepest to shallowest, excluding the
// topmost ring level, capped at limit entries within the first maxDepth
// levels scanned (spec.md §4.5's "where are we?" seed exchange).
func (bt *BlockTree) GetBlockIDsAndHashes(limit, maxDepth int) []BlockIDHash {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	var out []BlockIDHash
	top := len(bt.levels) - 1
	scanned := 0
	for lvl := top - 1; lvl >= 0 && scanned < maxDepth && len(out) < limit; lvl-- {
		scanned++
		for _, n := range bt.levels[lvl] {
			if !n.HasBlock() {
				continue
			}
			out = append(out, BlockIDHash{Id: n.Header.Id, Hash: n.Hash})
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// BlockIDHash is one entry of GetBlockIDsAndHashes's result.
type BlockIDHash struct {
	Id   uint32
	Hash [32]byte
}
