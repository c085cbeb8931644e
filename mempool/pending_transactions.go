// Package mempool implements PendingTransactions, spec.md §4.2: the
// thread-safe pool tracking pending vs. tentatively-executed transactions,
// serving requests from pending blocks, and supporting rebuild after
// rollback. Grounded on the teacher's transaction-pool shape as seen in
// the pack's go-ethereum-lineage txpool (other_examples
// luxfi-evm__core-txpool-txpool.go: RWMutex-guarded pending map + ordered
// delivery) and mempool.go (dusk-blockchain), adapted to the
// pending/executed split spec.md requires instead of a single pending set.
package mempool

import (
	"container/list"
	"sync"

	"gopkg.in/fatih/set.v0"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/cache"
	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Mempool)

// PendingBlockSink is the surface PendingTransactions needs from a pending
// block to deliver requested transactions to it, kept as an interface
// (rather than importing package pendingblock) to avoid a dependency
// cycle -- pendingblock does not need to import mempool at all; blocktree
// wires the two together. *pendingblock.PendingBlock satisfies this
// structurally.
type PendingBlockSink interface {
	MissingTransactionIDs() []chaintypes.Key
	AddTransactions(txs []chaintypes.Transaction)
}

type executedEntry struct {
	tx    chaintypes.Transaction
	index int
}

// PendingTransactions is the mempool of spec.md §4.2. All exported methods
// are safe for concurrent use.
type PendingTransactions struct {
	mu sync.RWMutex

	pending  map[chaintypes.Key]chaintypes.Transaction
	fifo     *list.List
	fifoElem map[chaintypes.Key]*list.Element

	executed   map[chaintypes.Key]executedEntry
	nextExecIx int

	// requested[id] is the set of pending blocks waiting on id, the same
	// set.New()/.Add()/.Has() shape the teacher uses in work/worker.go for
	// ancestor/family/uncle bookkeeping.
	requested map[chaintypes.Key]*set.Set

	verified cache.IDCache

	maxCount int
	maxSize  int64
}

// New builds an empty pool. maxCount/maxSize are kBlockMaxTransactions and
// kBlockMaxTransactionsSize; canAdd enforces 2x/8x multiples of them per
// spec.md §4.2.
func New(maxCount int, maxSize int64) *PendingTransactions {
	return &PendingTransactions{
		pending:   make(map[chaintypes.Key]chaintypes.Transaction),
		fifo:      list.New(),
		fifoElem:  make(map[chaintypes.Key]*list.Element),
		executed:  make(map[chaintypes.Key]executedEntry),
		requested: make(map[chaintypes.Key]*set.Set),
		verified:  cache.NewIDCache(cache.FastType, 1<<16),
		maxCount:  maxCount,
		maxSize:   maxSize,
	}
}

// CanAdd reports whether a transaction of the given id/size would be
// accepted: true if the id is already requested by a pending block, or the
// pool has headroom (count < 2*maxCount and size <= 8*maxSize).
func (p *PendingTransactions) CanAdd(id chaintypes.Key, size uint16) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.requested[id]; ok {
		return true
	}
	if len(p.pending) >= 2*p.maxCount {
		return false
	}
	return p.currentPendingSize()+int64(size) <= 8*p.maxSize
}

func (p *PendingTransactions) currentPendingSize() int64 {
	var total int64
	for _, tx := range p.pending {
		total += int64(tx.GetSize())
	}
	return total
}

// Add inserts every transaction missing from both maps into pending,
// appends its id to the FIFO queue, and delivers any transaction whose id
// is in requested to the waiting pending blocks (outside the lock).
// Returns the count of genuinely new entries.
func (p *PendingTransactions) Add(txs []chaintypes.Transaction, reporter string) int {
	type delivery struct {
		sink PendingBlockSink
		txs  []chaintypes.Transaction
	}

	p.mu.Lock()
	newCount := 0
	toDeliver := make(map[PendingBlockSink][]chaintypes.Transaction)
	for _, tx := range txs {
		key := tx.GetId().Key()
		if _, inPending := p.pending[key]; !inPending {
			if _, inExecuted := p.executed[key]; !inExecuted {
				p.pending[key] = tx
				p.fifoElem[key] = p.fifo.PushBack(key)
				newCount++
			}
		}
		if sinks, ok := p.requested[key]; ok {
			for _, item := range sinks.List() {
				sink := item.(PendingBlockSink)
				toDeliver[sink] = append(toDeliver[sink], tx)
			}
			delete(p.requested, key)
		}
	}
	p.mu.Unlock()

	for sink, list := range toDeliver {
		sink.AddTransactions(list)
	}
	if newCount > 0 {
		logger.Debug("added transactions to pool", "new", newCount, "total", newCount, "reporter", reporter)
	}
	return newCount
}

// AddExecuted inserts transactions into the executed map in
// mined-or-received order, assigning each a monotonic index.
func (p *PendingTransactions) AddExecuted(txs []chaintypes.Transaction) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	newCount := 0
	for _, tx := range txs {
		key := tx.GetId().Key()
		if _, inPending := p.pending[key]; inPending {
			continue
		}
		if _, inExecuted := p.executed[key]; inExecuted {
			continue
		}
		p.executed[key] = executedEntry{tx: tx, index: p.nextExecIx}
		p.nextExecIx++
		newCount++
	}
	return newCount
}

// AddIfRequested delivers tx to waiting pending blocks if its id is
// requested (dropping the request), and, unless onlyBlock is set, also
// inserts it into pending. Returns whether the id was requested.
func (p *PendingTransactions) AddIfRequested(tx chaintypes.Transaction, onlyBlock bool) bool {
	key := tx.GetId().Key()

	p.mu.Lock()
	var sinks []PendingBlockSink
	wasRequested := false
	if s, ok := p.requested[key]; ok {
		wasRequested = true
		for _, item := range s.List() {
			sinks = append(sinks, item.(PendingBlockSink))
		}
		delete(p.requested, key)
	}
	if !onlyBlock {
		if _, inPending := p.pending[key]; !inPending {
			if _, inExecuted := p.executed[key]; !inExecuted {
				p.pending[key] = tx
				p.fifoElem[key] = p.fifo.PushBack(key)
			}
		}
	}
	p.mu.Unlock()

	for _, sink := range sinks {
		sink.AddTransactions([]chaintypes.Transaction{tx})
	}
	return wasRequested
}

// GetPending returns up to limit pending transactions in FIFO order.
// limit<=0 means unbounded.
func (p *PendingTransactions) GetPending(limit int) []chaintypes.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]chaintypes.Transaction, 0, p.fifo.Len())
	for e := p.fifo.Front(); e != nil; e = e.Next() {
		key := e.Value.(chaintypes.Key)
		out = append(out, p.pending[key])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// GetExecuted returns up to limit executed transactions in execution
// order.
func (p *PendingTransactions) GetExecuted(limit int) []chaintypes.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ordered := make([]executedEntry, 0, len(p.executed))
	for _, e := range p.executed {
		ordered = append(ordered, e)
	}
	sortByIndex(ordered)
	n := len(ordered)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]chaintypes.Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = ordered[i].tx
	}
	return out
}

func sortByIndex(e []executedEntry) {
	for i := 1; i < len(e); i++ {
		for j := i; j > 0 && e[j].index < e[j-1].index; j-- {
			e[j], e[j-1] = e[j-1], e[j]
		}
	}
}

// Get returns the transaction for id, from either map.
func (p *PendingTransactions) Get(id chaintypes.Key) (chaintypes.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if tx, ok := p.pending[id]; ok {
		return tx, true
	}
	if e, ok := p.executed[id]; ok {
		return e.tx, true
	}
	return nil, false
}

// GetMany returns the subset of ids present in the pool.
func (p *PendingTransactions) GetMany(ids []chaintypes.Key) []chaintypes.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]chaintypes.Transaction, 0, len(ids))
	for _, id := range ids {
		if tx, ok := p.pending[id]; ok {
			out = append(out, tx)
		} else if e, ok := p.executed[id]; ok {
			out = append(out, e.tx)
		}
	}
	return out
}

// HasExecuted reports whether id is in the executed map.
func (p *PendingTransactions) HasExecuted(id chaintypes.Key) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.executed[id]
	return ok
}

// HasAny returns the subset of ids present in either map.
func (p *PendingTransactions) HasAny(ids []chaintypes.Key) map[chaintypes.Key]struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[chaintypes.Key]struct{})
	for _, id := range ids {
		if _, ok := p.pending[id]; ok {
			out[id] = struct{}{}
			continue
		}
		if _, ok := p.executed[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// IsCryptoVerified reports whether id's signature has already been
// verified, per spec.md §4.1's verification cache.
func (p *PendingTransactions) IsCryptoVerified(id chaintypes.Key) bool {
	return p.verified.Has(id[:])
}

// MarkCryptoVerified records id as signature-verified.
func (p *PendingTransactions) MarkCryptoVerified(id chaintypes.Key) {
	p.verified.Mark(id[:])
}

// AddPendingBlock atomically snapshots pb's missing transaction ids;
// any id already present in pending or executed is delivered immediately
// (outside the lock); the rest are registered in requested.
func (p *PendingTransactions) AddPendingBlock(pb PendingBlockSink) {
	missing := pb.MissingTransactionIDs()

	p.mu.Lock()
	var toDeliver []chaintypes.Transaction
	for _, id := range missing {
		if tx, ok := p.pending[id]; ok {
			toDeliver = append(toDeliver, tx)
			continue
		}
		if e, ok := p.executed[id]; ok {
			toDeliver = append(toDeliver, e.tx)
			continue
		}
		if p.requested[id] == nil {
			p.requested[id] = set.New()
		}
		p.requested[id].Add(pb)
	}
	p.mu.Unlock()

	if len(toDeliver) > 0 {
		pb.AddTransactions(toDeliver)
	}
}

// RemovePendingBlock removes pb from every id's requested set, dropping
// sets left empty.
func (p *PendingTransactions) RemovePendingBlock(pb PendingBlockSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, sinks := range p.requested {
		sinks.Remove(pb)
		if sinks.IsEmpty() {
			delete(p.requested, id)
		}
	}
}

// Remove drops ids from pending only (used after a commit applies them).
func (p *PendingTransactions) Remove(ids []chaintypes.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if elem, ok := p.fifoElem[id]; ok {
			p.fifo.Remove(elem)
			delete(p.fifoElem, id)
		}
		delete(p.pending, id)
	}
}

// ClearExecuted relocates every executed transaction back to the FRONT of
// the FIFO queue, preserving execution order, and empties the executed
// map. This is the central rebuild primitive spec.md §4.2 calls out,
// invoked before every mine and before every rollback so tentatively
// executed transactions regain priority without losing their relative
// order.
func (p *PendingTransactions) ClearExecuted() {
	p.mu.Lock()
	defer p.mu.Unlock()

	ordered := make([]struct {
		key chaintypes.Key
		e   executedEntry
	}, 0, len(p.executed))
	for k, e := range p.executed {
		ordered = append(ordered, struct {
			key chaintypes.Key
			e   executedEntry
		}{k, e})
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].e.index < ordered[j-1].e.index; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		key := ordered[i].key
		p.pending[key] = ordered[i].e.tx
		p.fifoElem[key] = p.fifo.PushFront(key)
	}
	p.executed = make(map[chaintypes.Key]executedEntry)
	p.nextExecIx = 0
}

// Len returns (pending count, executed count), for diagnostics/metrics.
func (p *PendingTransactions) Len() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pending), len(p.executed)
}
