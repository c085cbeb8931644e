package blocktree

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/pendingblock"
)

// Node is one header's slot in the tree: either pending (assembly still in
// progress), materialized (a full Block, not yet executed), or executed
// (materialized and part of the active branch). A node always has a
// Header; Pending and Block are mutually exclusive except for the instant
// onPendingUpdated swaps one for the other.
type Node struct {
	Header   *chaintypes.Header
	Hash     [32]byte
	Reporter string

	Pending *pendingblock.PendingBlock
	Block   *chaintypes.Block

	Executed bool

	// hasLockedTransactions marks that this node's pending block has
	// already been registered with the mempool (spec.md §4.4
	// on_pending_updated: "if ... the tree has not yet registered it");
	// prevents re-registering on every subsequent callback while still
	// MISSING_TRANSACTIONS.
	hasLockedTransactions bool
}

// HasBlock reports whether the node carries a materialized block (pending
// or otherwise immaterial nodes do not), the test get_longest_branch uses
// to decide if a node is a viable link.
func (n *Node) HasBlock() bool {
	return n.Block != nil
}
