// Package blockchainctl implements Blockchain, spec.md §4.6: the single
// dedicated control thread that drives branch selection, mining, and
// pending-transaction execution off a 100ms periodic timer, exactly one
// action per tick.
//
// Grounded on the teacher's work/worker.go (the mainLoop/newWorkLoop
// goroutines driven by a periodic ticker plus event-driven commit
// triggers) for the "single goroutine owns all state transitions, a timer
// drives its ticks" shape; unlike worker.go's tx-pool-driven commit, this
// loop is entirely timer-driven per spec.md §5's "Control thread...
// timer-driven" contract, and performs exactly one of updateBranch /
// checkMining / checkTransactions per tick rather than racing them.
package blockchainctl

import (
	"context"
	"sync"
	"time"

	"github.com/corechain/node/blocktree"
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/config"
	"github.com/corechain/node/cryptoutil"
	"github.com/corechain/node/eventbus"
	"github.com/corechain/node/internal/log"
	"github.com/corechain/node/mempool"
	"github.com/corechain/node/roundrobin"
	"github.com/corechain/node/store"
	"github.com/corechain/node/verifier"
)

var logger = log.NewModuleLogger(log.Blockchain)

// Identity is a node's mining credentials: the miner id registered on
// chain, and optionally the owner key that lets it claim mining rewards
// (spec.md §4.6: "append a reward transaction... if the miner's owner
// holds the miner's signing key").
type Identity struct {
	MinerID   chaintypes.MinerID
	MinerPub  cryptoutil.PublicKey
	MinerPriv cryptoutil.PrivateKey

	HasOwnerKey bool
	OwnerPub    cryptoutil.PublicKey
	OwnerPriv   cryptoutil.PrivateKey
}

// Blockchain is the control loop of spec.md §4.6. All of its state is
// owned by the single goroutine Run spawns; collaborators (BlockTree,
// PendingTransactions, CryptoVerifier) are separately thread-safe because
// sessions and the verifier pool touch them from other goroutines.
type Blockchain struct {
	cfg *config.Config

	tree     *blocktree.BlockTree
	mempool  *mempool.PendingTransactions
	verifier *verifier.CryptoVerifier

	confirmed   *store.Confirmed
	unconfirmed *store.Unconfirmed

	events *eventbus.Events

	identity Identity
	initTime int64 // unix seconds, from block 1's InitTransaction

	// blockProductionEnabled is the "test subclass" hook of spec.md §4.6's
	// mining policy: false disables checkMining entirely without
	// otherwise changing the loop's behavior.
	blockProductionEnabled bool

	mu                sync.Mutex
	lastMinedExpected uint32
	lastMineAttempt   time.Time
	lastTipChangedAt  time.Time

	stop chan struct{}
	done chan struct{}
}

// New builds a Blockchain over already-loaded collaborators. initTime is
// block 1's InitTransaction.InitializationTime.
func New(
	cfg *config.Config,
	tree *blocktree.BlockTree,
	mp *mempool.PendingTransactions,
	v *verifier.CryptoVerifier,
	confirmed *store.Confirmed,
	unconfirmed *store.Unconfirmed,
	events *eventbus.Events,
	identity Identity,
	initTime int64,
) *Blockchain {
	return &Blockchain{
		cfg:                     cfg,
		tree:                    tree,
		mempool:                 mp,
		verifier:                v,
		confirmed:               confirmed,
		unconfirmed:             unconfirmed,
		events:                  events,
		identity:                identity,
		initTime:                initTime,
		blockProductionEnabled:  true,
		lastTipChangedAt:        time.Now(),
		stop:                    make(chan struct{}),
		done:                    make(chan struct{}),
	}
}

// DisableBlockProduction is the test-subclass hook spec.md §4.6 names: a
// node started purely to observe/relay never mines.
func (bc *Blockchain) DisableBlockProduction() {
	bc.mu.Lock()
	bc.blockProductionEnabled = false
	bc.mu.Unlock()
}

// Run drives the control loop until ctx is done or Stop is called. Only
// one tick's worth of work (updateBranch, checkMining, or
// checkTransactions) runs between timer fires, per spec.md §4.6.
func (bc *Blockchain) Run(ctx context.Context) {
	defer close(bc.done)
	ticker := time.NewTicker(bc.cfg.ControlTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-bc.stop:
			return
		case <-ticker.C:
			bc.tick()
		}
	}
}

// Stop requests the loop to exit and blocks until it has (spec.md §5's
// shutdown sequence begins with "cancel timer").
func (bc *Blockchain) Stop() {
	select {
	case <-bc.stop:
	default:
		close(bc.stop)
	}
	<-bc.done
}

func (bc *Blockchain) tick() {
	active := bc.tree.GetActiveBranch()
	longest := bc.tree.GetLongestBranch()
	if !branchEqual(active, longest) {
		bc.updateBranch(active, longest)
		return
	}
	if bc.checkMining() {
		return
	}
	bc.checkTransactions(time.Second)
}

func branchEqual(a, b []*blocktree.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Hash != b[i].Hash {
			return false
		}
	}
	return true
}

func minerStakes(in []store.MinerStake) []roundrobin.MinerStake {
	out := make([]roundrobin.MinerStake, len(in))
	for i, m := range in {
		out[i] = roundrobin.MinerStake{ID: m.ID, Stake: m.Stake}
	}
	return out
}
