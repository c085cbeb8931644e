// Package session implements the per-connection peer protocol of spec.md
// §4.5: packet-driven handshake, chain catch-up, and transaction gossip.
// One Session per accepted or dialed connection; packet handlers run on
// the session's own goroutine and delegate every mutation to thread-safe
// collaborators (BlockTree, PendingTransactions, the confirmed store).
//
// Grounded on the teacher's node/cn/peer.go peer-state shape (per-peer
// known-item dedup, bounded broadcast queues written from a dedicated
// writer loop so a slow peer can never block the node) and on
// work/worker.go's single-goroutine-owns-mutable-state discipline already
// used by package blockchainctl.
package session

import (
	"hash/fnv"
	"sync"

	"github.com/steakknife/bloomfilter"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Session)

// recentFilter is the bounded rotating set of spec.md §4.5: "a bounded
// rotating set of recently-shared transaction ids (default 64 chunks x
// 2048 entries)". chunks is a ring; the newest chunk absorbs every Add
// until it holds chunkSize entries, then a fresh chunk is rotated in and
// the oldest is dropped, bounding total memory regardless of how long a
// session lives.
type recentFilter struct {
	mu        sync.Mutex
	chunks    []*bloomfilter.Filter
	counts    []int
	chunkSize int
	head      int // index of the chunk currently being filled
	filled    int // number of chunks in use, <= len(chunks)
}

// newRecentFilter builds a dedup set with numChunks chunks of chunkSize
// entries each, per config.RecentTxFilterChunks/RecentTxFilterChunkSize.
func newRecentFilter(numChunks, chunkSize int) *recentFilter {
	if numChunks < 1 {
		numChunks = 1
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	f := &recentFilter{
		chunks:    make([]*bloomfilter.Filter, numChunks),
		counts:    make([]int, numChunks),
		chunkSize: chunkSize,
	}
	f.chunks[0] = newChunkFilter(chunkSize)
	f.filled = 1
	return f
}

func newChunkFilter(chunkSize int) *bloomfilter.Filter {
	bf, err := bloomfilter.NewOptimal(uint64(chunkSize), 0.001)
	if err != nil {
		// NewOptimal only fails on a non-positive size, which newRecentFilter
		// already guards against.
		logger.Error("failed to allocate chunk filter", "err", err)
		bf, _ = bloomfilter.New(uint64(chunkSize)*8, 4)
	}
	return bf
}

func hashKey(key chaintypes.Key) *fnvHash {
	h := fnv.New64a()
	h.Write(key[:])
	return &fnvHash{h.Sum64()}
}

// fnvHash adapts a precomputed 64-bit hash to bloomfilter's hash.Hash64
// input contract without re-hashing on every Contains call.
type fnvHash struct{ sum uint64 }

func (f *fnvHash) Write(p []byte) (int, error) { return len(p), nil }
func (f *fnvHash) Sum(b []byte) []byte         { return b }
func (f *fnvHash) Reset()                      {}
func (f *fnvHash) Size() int                   { return 8 }
func (f *fnvHash) BlockSize() int              { return 8 }
func (f *fnvHash) Sum64() uint64               { return f.sum }

// Has reports whether key was recently shared with this peer, scanning
// every live chunk (a bloom filter false positive here only means a
// retransmit is skipped, never that one is wrongly sent).
func (f *recentFilter) Has(key chaintypes.Key) bool {
	h := hashKey(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < f.filled; i++ {
		idx := (f.head - i + len(f.chunks)) % len(f.chunks)
		if f.chunks[idx] != nil && f.chunks[idx].Contains(h) {
			return true
		}
	}
	return false
}

// Add records key as shared, rotating in a fresh chunk once the current
// one reaches chunkSize entries.
func (f *recentFilter) Add(key chaintypes.Key) {
	h := hashKey(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[f.head] >= f.chunkSize {
		f.head = (f.head + 1) % len(f.chunks)
		f.chunks[f.head] = newChunkFilter(f.chunkSize)
		f.counts[f.head] = 0
		if f.filled < len(f.chunks) {
			f.filled++
		}
	}
	f.chunks[f.head].Add(h)
	f.counts[f.head]++
}
