// Package verifier implements CryptoVerifier, spec.md §4.1: a fixed-size
// worker pool that verifies ed25519 signatures off the control thread.
// Verification is pure (no tree/mempool/store access, per §5: "Verifier
// pool: fixed N worker threads, parallel... No access to tree/mempool/
// store"); callers decide separately whether a transaction's mempool
// crypto-verified cache entry makes the call unnecessary.
//
// Grounded on the teacher's channel-driven worker pattern (work/worker.go:
// an Agent reads *Task off a channel, returns a *Result on another) and on
// its metrics registration style (rcrowley/go-metrics counters registered
// at package scope, as in work/worker.go's timeLimitReachedCounter).
package verifier

import (
	"sync"

	"github.com/rcrowley/go-metrics"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Verifier)

var (
	verifiedCounter = metrics.NewRegisteredCounter("verifier/verified", nil)
	rejectedCounter = metrics.NewRegisteredCounter("verifier/rejected", nil)
)

type job struct {
	tx       chaintypes.Transaction
	callback func(chaintypes.Transaction, bool)
	result   chan bool // nil for VerifyOne, set for the internal VerifyBatch path
}

// CryptoVerifier is a fixed-size pool of verification workers.
//
// closeMu guards the decision to send on jobs versus treat the pool as
// shut down: Shutdown takes the write lock before closing jobs, so no
// sender can be mid-send on a channel Shutdown is about to close, and any
// sender arriving after Shutdown's write lock is released observes
// closed==true under its own read lock.
type CryptoVerifier struct {
	jobs chan job
	wg   sync.WaitGroup

	closeMu   sync.RWMutex
	closeOnce sync.Once
	closed    bool
}

// New starts a pool of n workers. n is typically config.VerifierPoolSize
// (default 8, spec.md §4.1).
func New(n int) *CryptoVerifier {
	if n <= 0 {
		n = 8
	}
	v := &CryptoVerifier{
		jobs: make(chan job, n*4),
	}
	v.wg.Add(n)
	for i := 0; i < n; i++ {
		go v.worker()
	}
	return v
}

func (v *CryptoVerifier) worker() {
	defer v.wg.Done()
	for j := range v.jobs {
		ok := j.tx.ValidateSignatures()
		if ok {
			verifiedCounter.Inc(1)
		} else {
			rejectedCounter.Inc(1)
		}
		if j.result != nil {
			j.result <- ok
			continue
		}
		if j.callback != nil {
			j.callback(j.tx, ok)
		}
	}
}

// submit enqueues j unless the pool is shut down, in which case it reports
// false and the caller is responsible for a synchronous fallback result.
func (v *CryptoVerifier) submit(j job) bool {
	v.closeMu.RLock()
	defer v.closeMu.RUnlock()
	if v.closed {
		return false
	}
	v.jobs <- j
	return true
}

// VerifyOne submits tx for asynchronous verification; callback runs on a
// pool worker goroutine, never on the caller's goroutine, satisfying the
// contract that the verifier "must never call back on the control thread".
func (v *CryptoVerifier) VerifyOne(tx chaintypes.Transaction, callback func(chaintypes.Transaction, bool)) {
	if !v.submit(job{tx: tx, callback: callback}) {
		logger.Warn("verify_one submitted after shutdown", "id", tx.GetId().Key())
	}
}

// VerifyBatch submits every transaction and blocks until all results
// arrive, returning index-aligned results.
func (v *CryptoVerifier) VerifyBatch(txs []chaintypes.Transaction) []bool {
	results := make([]bool, len(txs))
	channels := make([]chan bool, len(txs))
	for i, tx := range txs {
		ch := make(chan bool, 1)
		channels[i] = ch
		if !v.submit(job{tx: tx, result: ch}) {
			ch <- false
		}
	}
	for i, ch := range channels {
		results[i] = <-ch
	}
	return results
}

// Shutdown stops accepting new work and blocks until every outstanding
// task completes, per the §4.1 contract ("must complete outstanding tasks
// before shutdown").
func (v *CryptoVerifier) Shutdown() {
	v.closeOnce.Do(func() {
		v.closeMu.Lock()
		v.closed = true
		close(v.jobs)
		v.closeMu.Unlock()
	})
	v.wg.Wait()
}
