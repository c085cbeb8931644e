// Package pendingblock implements PendingBlock, spec.md §4.3: the
// reader-writer-locked state machine that assembles a header accepted by
// the block tree into a complete, verifiable Block by piecewise delivery
// of its body, its transaction-id chunks, and finally the transactions
// themselves. Grounded on the teacher's work/pending_state-style staged
// assembly (work/pending_state.go builds a block incrementally under its
// own lock and notifies via a feed) and on the stretchr/testify-driven
// test style used throughout the pack.
//
// PendingBlock deliberately does not import package mempool: the
// mempool.PendingBlockSink interface is structural, and PendingBlock's
// AddTransactions/MissingTransactionIDs methods satisfy it without either
// package needing to know about the other. blocktree wires them together
// (package session also imports both), preserving the leaf-to-root
// dependency order CryptoVerifier -> PendingTransactions -> PendingBlock ->
// BlockTree -> Blockchain.
package pendingblock

import (
	"sync"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.PendingBlock)

// Status is the PendingBlock state machine of spec.md §4.3. The first four
// are the assembly pipeline; Invalid/Expired/Finished are terminal.
type Status int

const (
	StatusMissingBody Status = iota
	StatusMissingTransactionIDs
	StatusMissingTransactions
	StatusComplete
	StatusInvalid
	StatusExpired
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusMissingBody:
		return "MISSING_BODY"
	case StatusMissingTransactionIDs:
		return "MISSING_TRANSACTION_IDS"
	case StatusMissingTransactions:
		return "MISSING_TRANSACTIONS"
	case StatusComplete:
		return "COMPLETE"
	case StatusInvalid:
		return "INVALID"
	case StatusExpired:
		return "EXPIRED"
	case StatusFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) Terminal() bool {
	return s == StatusInvalid || s == StatusExpired || s == StatusFinished
}

// AddResult is the outcome of each add_* operation, spec.md §4.3.
type AddResult int

const (
	Correct AddResult = iota
	Duplicated
	InvalidData
	InvalidBlock
)

func (r AddResult) String() string {
	switch r {
	case Correct:
		return "CORRECT"
	case Duplicated:
		return "DUPLICATED"
	case InvalidData:
		return "INVALID_DATA"
	case InvalidBlock:
		return "INVALID_BLOCK"
	default:
		return "UNKNOWN"
	}
}

// PendingBlock assembles a Block from a validated header. Constructed with
// an on_updated callback that is always invoked outside the lock, per
// spec.md §4.3 and the concurrency model of §5 ("its single on_updated
// callback is invoked outside the lock on the calling thread").
type PendingBlock struct {
	mu sync.RWMutex

	header    *chaintypes.Header
	chunkSize int
	reporter  string

	body   *chaintypes.Body
	have   []bool
	chunks [][]chaintypes.TransactionId

	missing  map[chaintypes.Key]struct{}
	resolved map[chaintypes.Key]chaintypes.Transaction

	status Status

	onUpdated func(*PendingBlock)
}

// New constructs a PendingBlock awaiting its body. reporter identifies the
// peer (or "local") that supplied the header, used by BlockTree to enforce
// the per-reporter single-unexecuted-block-per-level limit.
func New(header *chaintypes.Header, chunkSize int, reporter string, onUpdated func(*PendingBlock)) *PendingBlock {
	return &PendingBlock{
		header:    header,
		chunkSize: chunkSize,
		reporter:  reporter,
		missing:   make(map[chaintypes.Key]struct{}),
		resolved:  make(map[chaintypes.Key]chaintypes.Transaction),
		status:    StatusMissingBody,
		onUpdated: onUpdated,
	}
}

// Header returns the header this pending block was built from.
func (pb *PendingBlock) Header() *chaintypes.Header { return pb.header }

// Hash returns the pending block's identity, its header hash.
func (pb *PendingBlock) Hash() [32]byte { return pb.header.Hash() }

// Reporter returns the peer id (or "local") that supplied the header.
func (pb *PendingBlock) Reporter() string { return pb.reporter }

// Status returns the current state.
func (pb *PendingBlock) Status() Status {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.status
}

// AddBody validates body against the header's recorded hash and, on first
// acceptance, allocates the (null-initialized) chunk bookkeeping.
func (pb *PendingBlock) AddBody(body *chaintypes.Body) AddResult {
	result, changed := pb.addBodyLocked(body)
	if changed {
		pb.invokeCallback()
	}
	return result
}

func (pb *PendingBlock) addBodyLocked(body *chaintypes.Body) (AddResult, bool) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.status.Terminal() {
		return InvalidBlock, false
	}
	if pb.body != nil {
		return Duplicated, false
	}
	if body.Hash() != pb.header.BodyHash {
		return InvalidData, false
	}
	pb.body = body
	n := len(body.ChunkHashes)
	pb.have = make([]bool, n)
	pb.chunks = make([][]chaintypes.TransactionId, n)
	before := pb.status
	pb.recomputeStatusLocked()
	return Correct, pb.status != before
}

// AddChunks matches each supplied chunk against the body's recorded chunk
// hashes by content hash (spec.md §4.3: "locates its index by hash").
// Duplicates are ignored; a chunk matching no recorded hash is
// INVALID_DATA. When every chunk becomes known, the union of all chunk
// contents populates the missing-transactions set.
func (pb *PendingBlock) AddChunks(chunks [][]chaintypes.TransactionId) AddResult {
	result, changed := pb.addChunksLocked(chunks)
	if changed {
		pb.invokeCallback()
	}
	return result
}

func (pb *PendingBlock) addChunksLocked(chunks [][]chaintypes.TransactionId) (AddResult, bool) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.status.Terminal() || pb.body == nil {
		return InvalidBlock, false
	}

	var newly, dup, unknown int
	for _, chunk := range chunks {
		hash := chaintypes.HashChunk(chunk)
		idx := -1
		for i, h := range pb.body.ChunkHashes {
			if h == hash {
				idx = i
				break
			}
		}
		if idx == -1 {
			unknown++
			continue
		}
		if pb.have[idx] {
			dup++
			continue
		}
		pb.have[idx] = true
		pb.chunks[idx] = chunk
		newly++
	}

	allHave := true
	for _, h := range pb.have {
		if !h {
			allHave = false
			break
		}
	}
	if newly > 0 && allHave {
		for _, chunk := range pb.chunks {
			for _, id := range chunk {
				key := id.Key()
				if _, done := pb.resolved[key]; !done {
					pb.missing[key] = struct{}{}
				}
			}
		}
	}

	before := pb.status
	pb.recomputeStatusLocked()
	changed := pb.status != before

	switch {
	case newly > 0:
		return Correct, changed
	case dup > 0 && unknown == 0:
		return Duplicated, changed
	default:
		return InvalidData, changed
	}
}

// AddTransactionsResult moves ids present in missing into resolved.
// Entirely-duplicate input (every id already resolved) yields DUPLICATED;
// entirely-unknown input yields INVALID_DATA.
func (pb *PendingBlock) AddTransactionsResult(txs []chaintypes.Transaction) AddResult {
	result, changed := pb.addTransactionsLocked(txs)
	if changed {
		pb.invokeCallback()
	}
	return result
}

func (pb *PendingBlock) addTransactionsLocked(txs []chaintypes.Transaction) (AddResult, bool) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.status.Terminal() {
		return InvalidBlock, false
	}

	var matched, dup, unknown int
	for _, tx := range txs {
		key := tx.GetId().Key()
		if _, isMissing := pb.missing[key]; isMissing {
			delete(pb.missing, key)
			pb.resolved[key] = tx
			matched++
			continue
		}
		if _, already := pb.resolved[key]; already {
			dup++
			continue
		}
		unknown++
	}

	before := pb.status
	pb.recomputeStatusLocked()
	changed := pb.status != before

	switch {
	case matched > 0:
		return Correct, changed
	case dup > 0 && unknown == 0:
		return Duplicated, changed
	default:
		return InvalidData, changed
	}
}

// AddTransactions is the void-returning form required to satisfy
// mempool.PendingBlockSink structurally (mempool delivers transactions it
// already holds without needing a result code back).
func (pb *PendingBlock) AddTransactions(txs []chaintypes.Transaction) {
	result := pb.AddTransactionsResult(txs)
	if result == InvalidData {
		logger.Warn("mempool delivered transactions the pending block did not request", "block", pb.header.Id)
	}
}

// MissingTransactionIDs returns a snapshot of the ids still awaited,
// satisfying mempool.PendingBlockSink.
func (pb *PendingBlock) MissingTransactionIDs() []chaintypes.Key {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	out := make([]chaintypes.Key, 0, len(pb.missing))
	for k := range pb.missing {
		out = append(out, k)
	}
	return out
}

// MissingChunkIndices returns the indices of chunks not yet received, used
// to drive GET_BLOCK requests one missing piece at a time.
func (pb *PendingBlock) MissingChunkIndices() []int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	var out []int
	for i, h := range pb.have {
		if !h {
			out = append(out, i)
		}
	}
	return out
}

// HasBody reports whether AddBody has succeeded.
func (pb *PendingBlock) HasBody() bool {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.body != nil
}

// CreateBlock assembles the final Block. Succeeds only when the status is
// COMPLETE.
func (pb *PendingBlock) CreateBlock() (*chaintypes.Block, bool) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	if pb.status != StatusComplete {
		return nil, false
	}
	var txs []chaintypes.Transaction
	for _, chunk := range pb.chunks {
		for _, id := range chunk {
			txs = append(txs, pb.resolved[id.Key()])
		}
	}
	return &chaintypes.Block{
		Header:       pb.header,
		Body:         pb.body,
		IdChunks:     pb.chunks,
		Transactions: txs,
	}, true
}

// SetInvalid marks the pending block permanently invalid. Invalid
// dominates every other terminal state: once set it can never be
// overridden by SetExpired or SetFinished.
func (pb *PendingBlock) SetInvalid(reason string) {
	pb.mu.Lock()
	changed := pb.status != StatusInvalid
	pb.status = StatusInvalid
	pb.mu.Unlock()
	if changed {
		logger.Debug("pending block marked invalid", "block", pb.header.Id, "reason", reason)
		pb.invokeCallback()
	}
}

// SetExpired marks the pending block expired, unless it is already
// terminal (idempotent in the direction of terminality).
func (pb *PendingBlock) SetExpired() {
	pb.mu.Lock()
	changed := !pb.status.Terminal()
	if changed {
		pb.status = StatusExpired
	}
	pb.mu.Unlock()
	if changed {
		pb.invokeCallback()
	}
}

// SetFinished marks the pending block finished (its Block has been
// materialized and swapped into the tree), unless it is already Invalid.
func (pb *PendingBlock) SetFinished() {
	pb.mu.Lock()
	changed := pb.status != StatusInvalid && pb.status != StatusFinished
	if changed {
		pb.status = StatusFinished
	}
	pb.mu.Unlock()
	if changed {
		pb.invokeCallback()
	}
}

// recomputeStatusLocked derives the status from current fields. Caller
// must hold pb.mu. No-op once terminal.
func (pb *PendingBlock) recomputeStatusLocked() {
	if pb.status.Terminal() {
		return
	}
	switch {
	case pb.body == nil:
		pb.status = StatusMissingBody
	case !pb.allChunksPresentLocked():
		pb.status = StatusMissingTransactionIDs
	case len(pb.missing) > 0:
		pb.status = StatusMissingTransactions
	default:
		pb.status = StatusComplete
	}
}

func (pb *PendingBlock) allChunksPresentLocked() bool {
	for _, h := range pb.have {
		if !h {
			return false
		}
	}
	return true
}

// invokeCallback runs onUpdated outside the lock, per spec.md §4.3/§5.
func (pb *PendingBlock) invokeCallback() {
	if pb.onUpdated != nil {
		pb.onUpdated(pb)
	}
}
