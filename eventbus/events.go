// Package eventbus implements Events, spec.md §5's single-threaded
// fan-out of on_blocks/on_new_transactions to registered listeners
// without blocking the control thread.
//
// Grounded on the teacher's event.TypeMux usage (work/worker.go: a worker
// posts NewMinedBlockEvent/ChainHeadEvent onto a mux and subscribes via
// channel-returning Subscription values) but simplified to this system's
// two concrete event kinds -- no topic-by-reflected-type dispatch, since
// there are only ever two event shapes to fan out.
package eventbus

import (
	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Blockchain)

// BlocksEvent is posted after a branch switch or block application
// commits, per spec.md §4.6's updateBranch.
type BlocksEvent struct {
	Blocks      []*chaintypes.Block
	RolledBack  int
}

// NewTransactionsEvent is posted when transactions newly enter the pool.
type NewTransactionsEvent struct {
	Ids []chaintypes.Key
}

type postedEvent struct {
	blocks *BlocksEvent
	txs    *NewTransactionsEvent
}

// Events is a single-threaded fan-out bus: Post never blocks the caller
// beyond a channel send, and every listener callback runs on the bus's own
// goroutine, never the control thread's (spec.md §5: "fan-outs ...
// without blocking the control thread").
type Events struct {
	posts chan postedEvent
	done  chan struct{}

	onBlocks       []func(BlocksEvent)
	onTransactions []func(NewTransactionsEvent)
}

// New starts the bus's dispatch goroutine. Subscribe before the first Post if
// listeners must not miss the first events; the bus itself does not
// buffer past the channel's capacity.
func New() *Events {
	e := &Events{
		posts: make(chan postedEvent, 64),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Events) run() {
	for {
		select {
		case p, ok := <-e.posts:
			if !ok {
				return
			}
			switch {
			case p.blocks != nil:
				for _, fn := range e.onBlocks {
					fn(*p.blocks)
				}
			case p.txs != nil:
				for _, fn := range e.onTransactions {
					fn(*p.txs)
				}
			}
		case <-e.done:
			return
		}
	}
}

// OnBlocks registers a listener. Not safe to call concurrently with Stop;
// intended to be wired once at startup before Run begins ticking.
func (e *Events) OnBlocks(fn func(BlocksEvent)) {
	e.onBlocks = append(e.onBlocks, fn)
}

// OnNewTransactions registers a listener for newly pooled transactions.
func (e *Events) OnNewTransactions(fn func(NewTransactionsEvent)) {
	e.onTransactions = append(e.onTransactions, fn)
}

// PostBlocks fans out a block-application result.
func (e *Events) PostBlocks(blocks []*chaintypes.Block, rolledBack int) {
	select {
	case e.posts <- postedEvent{blocks: &BlocksEvent{Blocks: blocks, RolledBack: rolledBack}}:
	case <-e.done:
	}
}

// PostNewTransactions fans out newly pooled transaction ids.
func (e *Events) PostNewTransactions(ids []chaintypes.Key) {
	select {
	case e.posts <- postedEvent{txs: &NewTransactionsEvent{Ids: ids}}:
	case <-e.done:
	}
}

// Stop shuts the dispatch goroutine down; safe to call once.
func (e *Events) Stop() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}
