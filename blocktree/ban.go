package blocktree

// BanBlock records hash as banned, bans the reporter (if known), removes
// the node, and cleans up any now-orphaned descendants.
func (bt *BlockTree) BanBlock(hash [32]byte, reason string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	bt.banBlockLocked(hash, reason)
}

func (bt *BlockTree) banBlockLocked(hash [32]byte, reason string) {
	bt.banned[hash] = reason

	node, level, found := bt.findNodeByHashLocked(hash)
	if found {
		if node.Reporter != "" {
			bt.bannedReporters[node.Reporter] = struct{}{}
			if bt.reporterAtLevel[level][node.Reporter] == hash {
				delete(bt.reporterAtLevel[level], node.Reporter)
			}
		}
		delete(bt.levels[level], hash)
	}
	logger.Warn("banned block", "hash", hash, "reason", reason)
	bt.cleanOrphansLocked()
}

// cleanOrphansLocked removes any node whose parent is no longer present,
// level by level, since removing one node can orphan its entire subtree.
func (bt *BlockTree) cleanOrphansLocked() {
	for lvl := 0; lvl < len(bt.levels); lvl++ {
		for h, n := range bt.levels[lvl] {
			var parentPresent bool
			if lvl == 0 {
				parentPresent = n.Header.PrevHash == bt.baseHash
			} else {
				_, parentPresent = bt.levels[lvl-1][n.Header.PrevHash]
			}
			if !parentPresent {
				if n.Reporter != "" && bt.reporterAtLevel[lvl][n.Reporter] == h {
					delete(bt.reporterAtLevel[lvl], n.Reporter)
				}
				if n.Pending != nil {
					bt.mp.RemovePendingBlock(n.Pending)
				}
				delete(bt.levels[lvl], h)
			}
		}
	}
}
