// Package blocktree implements BlockTree, spec.md §4.4: the fixed-depth
// ring of candidate/executed blocks rooted at the last confirmed block,
// wiring PendingBlock assembly to PendingTransactions delivery.
//
// Grounded on the teacher's blockchain.BlockChain in-memory fork-choice
// bookkeeping (blockchain/blockchain.go's futureBlocks/badBlocks LRU
// caches and its single chainmu guarding the canonical-chain pointer) for
// the "single lock guards fork bookkeeping" shape, adapted to the spec's
// fixed-depth ring rather than the teacher's unbounded chain plus header
// cache. Unlike the spec's own reference design (Design Notes §9: "the
// current design needs re-entry because on_pending_updated is invoked
// from within tree operations"), onPendingUpdated here releases the tree
// lock before calling mempool.AddPendingBlock or re-validating a completed
// block (only ban-driven orphan cleanup calls mempool.RemovePendingBlock
// under the lock, and that call does not re-enter the tree), so a plain
// sync.Mutex suffices -- the two-phase
// alternative the design notes suggest, without an explicit re-entrant
// lock or a separate work queue.
package blocktree

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/internal/log"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/pendingblock"
	"github.com/corechain/node/roundrobin"
)

var logger = log.NewModuleLogger(log.BlockTree)

// BlockTree is the tree of spec.md §4.4. All exported methods are safe
// for concurrent use.
type BlockTree struct {
	mu  sync.Mutex
	cfg *config.Config
	mp  *mempool.PendingTransactions

	// The root is the last confirmed block; it is not itself a Node since
	// it is never banned, never pending, and owned by the confirmed store.
	baseHash   [32]byte
	baseHeader *chaintypes.Header

	// levels[0] holds nodes whose parent is the root; levels[i] holds
	// nodes whose parent lives in levels[i-1].
	levels []map[[32]byte]*Node

	miningQueue []chaintypes.MinerID

	banned          map[[32]byte]string
	bannedReporters map[string]struct{}
	// reporterAtLevel[i][reporter] = hash of that reporter's one
	// allowed unexecuted node at level i (spec.md §4.4: "at most one
	// unexecuted reported block at any given level").
	reporterAtLevel []map[string][32]byte
}

// New builds an empty tree; Load must be called once before use.
func New(cfg *config.Config, mp *mempool.PendingTransactions) *BlockTree {
	depth := cfg.TreeDepth()
	bt := &BlockTree{
		cfg:             cfg,
		mp:              mp,
		levels:          make([]map[[32]byte]*Node, depth),
		banned:          make(map[[32]byte]string),
		bannedReporters: make(map[string]struct{}),
		reporterAtLevel: make([]map[string][32]byte, depth),
	}
	for i := range bt.levels {
		bt.levels[i] = make(map[[32]byte]*Node)
		bt.reporterAtLevel[i] = make(map[string][32]byte)
	}
	return bt
}

// Load is the one-time loader: blocks are up to the last
// kDatabaseRollbackableBlocks+1 confirmed blocks, oldest first; miningQueue
// is the queue as of blocks[0].
func (bt *BlockTree) Load(blocks []*chaintypes.Block, miningQueue []chaintypes.MinerID) error {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if len(blocks) == 0 {
		return errors.New("blocktree: load requires at least one block")
	}
	queue := append([]chaintypes.MinerID{}, miningQueue...)
	for i := 1; i < len(blocks); i++ {
		queue = roundrobin.TrimToSize(queue, blocks[i].Header.NextMiners, bt.cfg.MinersQueueSize)
	}

	last := blocks[len(blocks)-1]
	bt.baseHeader = last.Header
	bt.baseHash = last.Header.Hash()
	bt.miningQueue = queue

	for i := range bt.levels {
		bt.levels[i] = make(map[[32]byte]*Node)
		bt.reporterAtLevel[i] = make(map[string][32]byte)
	}
	logger.Info("block tree loaded", "root_id", last.Header.Id, "queue_len", len(queue))
	return nil
}

// MiningQueue returns a copy of the current 240-entry mining queue.
func (bt *BlockTree) MiningQueue() []chaintypes.MinerID {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return append([]chaintypes.MinerID{}, bt.miningQueue...)
}

// parentLevel represents the root with -1; levels[0..] otherwise.
const rootLevel = -1

func (bt *BlockTree) findParentLocked(prevHash [32]byte) (header *chaintypes.Header, level int, ok bool) {
	if prevHash == bt.baseHash {
		return bt.baseHeader, rootLevel, true
	}
	for lvl, nodes := range bt.levels {
		if n, found := nodes[prevHash]; found {
			return n.Header, lvl, true
		}
	}
	return nil, 0, false
}

func (bt *BlockTree) findNodeByHashLocked(hash [32]byte) (*Node, int, bool) {
	for lvl, nodes := range bt.levels {
		if n, ok := nodes[hash]; ok {
			return n, lvl, true
		}
	}
	return nil, 0, false
}

// HasBlock reports whether hash identifies a materialized block anywhere
// in the tree.
func (bt *BlockTree) HasBlock(hash [32]byte) bool {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	n, _, ok := bt.findNodeByHashLocked(hash)
	return ok && n.HasBlock()
}

// GetPendingBlock returns the in-progress assembly for hash, if any.
func (bt *BlockTree) GetPendingBlock(hash [32]byte) (*pendingblock.PendingBlock, bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	n, _, ok := bt.findNodeByHashLocked(hash)
	if !ok || n.Pending == nil {
		return nil, false
	}
	return n.Pending, true
}

// IsInLastLevel reports whether hash is a node in the tree's final ring
// level (no room left to extend that branch further).
func (bt *BlockTree) IsInLastLevel(hash [32]byte) bool {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	_, found := bt.levels[len(bt.levels)-1][hash]
	return found
}

// IsBanned reports whether hash or reporter has been banned.
func (bt *BlockTree) IsBanned(hash [32]byte, reporter string) bool {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if _, ok := bt.banned[hash]; ok {
		return true
	}
	if reporter == "" {
		return false
	}
	_, ok := bt.bannedReporters[reporter]
	return ok
}
