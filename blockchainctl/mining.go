package blockchainctl

import (
	"time"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/roundrobin"
)

// checkMining implements spec.md §4.6's mining policy. It returns true if
// it produced (and queued, via the tree) a new candidate block, so tick
// can skip checkTransactions for this cycle.
func (bc *Blockchain) checkMining() bool {
	bc.mu.Lock()
	enabled := bc.blockProductionEnabled
	lastAttempt := bc.lastMineAttempt
	alreadyMinedExpected := bc.lastMinedExpected
	tipChangedAt := bc.lastTipChangedAt
	bc.mu.Unlock()
	if !enabled {
		return false
	}

	latest, ok := bc.unconfirmed.GetLatestBlockHeader()
	if !ok {
		return false
	}
	expected := bc.expectedBlockId()
	if latest.Id >= expected {
		return false
	}
	if alreadyMinedExpected == expected {
		return false
	}
	if time.Since(lastAttempt) < bc.cfg.BlockInterval/2 {
		return false
	}

	queue := bc.unconfirmed.GetMinersQueue()
	skipped := int(expected - latest.Id - 1)
	scheduled, err := bc.tree.ExpectedMinerForTip(latest.Hash(), skipped)
	if err != nil {
		// Past the end of the known schedule: mine only if we're one of
		// the last 16 slots and the tip has been stale for a full
		// interval (spec.md §4.6 fallback).
		if !inLastSlots(queue, bc.identity.MinerID, 16) {
			return false
		}
		if time.Since(tipChangedAt) < bc.cfg.BlockInterval {
			return false
		}
	} else if scheduled != bc.identity.MinerID {
		return false
	}

	if desynced(queue, bc.tree.GetActiveBranch(), bc.identity.MinerID) {
		return false
	}

	bc.mu.Lock()
	bc.lastMineAttempt = time.Now()
	bc.mu.Unlock()

	bc.mempool.ClearExecuted()
	bc.unconfirmed.Clear()

	txs := bc.processPendingTransactions(2 * time.Second)
	if bc.identity.HasOwnerKey {
		if reward := bc.buildRewardTx(expected); reward != nil {
			txs = append(txs, reward)
		}
	}

	nextMiners := bc.nextMinersFor(queue, skipped+1)
	block := chaintypes.Build(chaintypes.BuildParams{
		Version:      1,
		MaxVersion:   1,
		Id:           expected,
		Depth:        latest.Depth + 1,
		PrevHash:     latest.Hash(),
		MinerId:      bc.identity.MinerID,
		NextMiners:   nextMiners,
		Transactions: txs,
		ChunkSize:    bc.cfg.ChunkSize,
	}, bc.identity.MinerPub, bc.identity.MinerPriv)

	// Only ever inserted into the tree, never committed directly: the
	// next tick's updateBranch applies it through the same addBlock path
	// as any peer-delivered block.
	if _, err := bc.tree.AddBlock(block, ""); err != nil {
		logger.Warn("checkMining: locally mined block rejected by the tree", "err", err)
		return false
	}

	bc.mu.Lock()
	bc.lastMinedExpected = expected
	bc.mu.Unlock()
	return true
}

// expectedBlockId is spec.md §4.6's "expected" id: the slot time has
// reached, derived purely from elapsed wall-clock time since genesis.
func (bc *Blockchain) expectedBlockId() uint32 {
	elapsed := time.Now().Unix() - bc.initTime
	if elapsed < 0 {
		return 1
	}
	return 1 + uint32(elapsed/int64(bc.cfg.BlockInterval/time.Second))
}

func (bc *Blockchain) buildRewardTx(blockID uint32) chaintypes.Transaction {
	ownerID := chaintypes.MinerIDFromPublicKey(bc.identity.OwnerPub)
	tx := &chaintypes.CommitTx{
		BlockId:     blockID,
		MinerOwner:  ownerID,
		RewardToken: bc.cfg.MinerRewardToken,
		Signer:      bc.identity.OwnerPub,
	}
	tx.Sig = cryptoutil.Sign(bc.identity.OwnerPriv, tx.SignaturePayload())
	return tx
}

func (bc *Blockchain) nextMinersFor(queue []chaintypes.MinerID, n int) []chaintypes.MinerID {
	top := minerStakes(bc.unconfirmed.GetTopMiners())
	return roundrobin.GetNextMiners(queue, bc.cfg.MinersQueueSize, top, n)
}

// inLastSlots reports whether id occupies one of the queue's last n
// entries (spec.md §4.6 fallback: "the miner appears in the last 16
// slots").
func inLastSlots(queue []chaintypes.MinerID, id chaintypes.MinerID, n int) bool {
	start := len(queue) - n
	if start < 0 {
		start = 0
	}
	for _, m := range queue[start:] {
		if m == id {
			return true
		}
	}
	return false
}

// desynced implements spec.md §4.6's over-quorum desync heuristic: when
// the local view looks overwhelmingly like everyone else's, back off
// mining rather than fork against the real network.
func desynced(queue []chaintypes.MinerID, recent []*blocktree.Node, self chaintypes.MinerID) bool {
	if len(queue) == 0 {
		return false
	}
	var others int
	for _, m := range queue {
		if m != self {
			others++
		}
	}
	if float64(others)/float64(len(queue)) < 0.8 {
		return false
	}
	if queue[0] == self {
		return false
	}
	if len(recent) == 0 {
		return false
	}
	lookback := recent
	if len(lookback) > 16 {
		lookback = lookback[len(lookback)-16:]
	}
	var othersInRecent int
	for _, n := range lookback {
		if n.Header.MinerId != self {
			othersInRecent++
		}
	}
	return othersInRecent > len(lookback)/2
}
