// Package roundrobin implements getNextMiners, spec.md §4.6: the
// deterministic, stake-weighted emission of new mining-queue slots. Given
// the current 240-slot queue and the stake-sorted set of top miners, it
// produces N new slots such that, over a full 240-slot queue built from
// scratch, each miner appears in proportion to its stake -- exactly
// stake(m) times when the included stakes sum to the queue size.
//
// There is no direct analog of this scheduler in the teacher repo (its
// istanbul consensus package rotates a validator set by round-number
// modulo, not by stake-weighted credit accounting); this is a direct,
// from-scratch translation of the spec's description, using only
// sort.Slice and bytes.Compare from the standard library for the
// deterministic tie-break, matching the teacher's own light use of stdlib
// sort helpers for small in-memory slices (e.g. blocktree's level scans).
package roundrobin

import (
	"bytes"
	"sort"

	"github.com/corechain/node/chaintypes"
)

// MinerStake pairs a miner with its active stake, the unit spec.md §4.6
// calls "top miners sorted by stake".
type MinerStake struct {
	ID    chaintypes.MinerID
	Stake uint64
}

type potentialMiner struct {
	id       chaintypes.MinerID
	stake    uint64
	period   uint64
	distance uint64
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// GetNextMiners computes n new mining-queue slots. queueSize is the
// nominal queue length (240, config.MinersQueueSize); it doubles as the
// "absent" distance sentinel for a miner with no occurrence in
// currentQueue.
func GetNextMiners(currentQueue []chaintypes.MinerID, queueSize int, topMiners []MinerStake, n int) []chaintypes.MinerID {
	sorted := make([]MinerStake, len(topMiners))
	copy(sorted, topMiners)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Stake != sorted[j].Stake {
			return sorted[i].Stake > sorted[j].Stake
		}
		return bytes.Compare(sorted[i].ID[:], sorted[j].ID[:]) < 0
	})

	var stakesSum uint64
	var potential []potentialMiner
	for _, m := range sorted {
		if m.Stake == 0 {
			continue
		}
		tentative := stakesSum + m.Stake
		if ceilDiv(tentative, m.Stake) > uint64(queueSize) {
			break
		}
		stakesSum = tentative
		potential = append(potential, potentialMiner{id: m.ID, stake: m.Stake})
	}
	if len(potential) == 0 {
		return nil
	}

	for i := range potential {
		potential[i].period = ceilDiv(stakesSum, potential[i].stake)
		potential[i].distance = lastDistance(currentQueue, queueSize, potential[i].id)
	}

	out := make([]chaintypes.MinerID, 0, n)
	for len(out) < n {
		for i := range potential {
			m := &potential[i]
			m.distance++
			if m.distance >= m.period {
				out = append(out, m.id)
				m.distance = 0
				if len(out) == n {
					return out
				}
			}
		}
	}
	return out
}

// lastDistance returns how many queue slots have elapsed since m's last
// (highest-index) occurrence in currentQueue, or queueSize if m never
// appears -- a miner the queue has no record of is immediately due.
func lastDistance(currentQueue []chaintypes.MinerID, queueSize int, m chaintypes.MinerID) uint64 {
	lastIdx := -1
	for i, id := range currentQueue {
		if id == m {
			lastIdx = i
		}
	}
	if lastIdx == -1 {
		return uint64(queueSize)
	}
	return uint64(len(currentQueue) - 1 - lastIdx)
}

// TrimToSize keeps the most recent size entries of a queue after appending
// newSlots, the operation BlockTree.load and update_active_branch use to
// fold a block's nextMiners into the running queue (spec.md §4.4).
func TrimToSize(queue []chaintypes.MinerID, newSlots []chaintypes.MinerID, size int) []chaintypes.MinerID {
	combined := append(append([]chaintypes.MinerID{}, queue...), newSlots...)
	if len(combined) <= size {
		return combined
	}
	return combined[len(combined)-size:]
}
