package roundrobin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/chaintypes"
	"github.com/corechain/node/roundrobin"
)

func miner(b byte) chaintypes.MinerID {
	var m chaintypes.MinerID
	m[0] = b
	return m
}

func countOccurrences(queue []chaintypes.MinerID) map[chaintypes.MinerID]int {
	counts := make(map[chaintypes.MinerID]int)
	for _, m := range queue {
		counts[m]++
	}
	return counts
}

func TestGetNextMinersProportionalToStakeWhenSumMatchesQueueSize(t *testing.T) {
	stakes := []uint64{10, 10, 20, 20, 20, 40, 40, 80}
	var topMiners []roundrobin.MinerStake
	ids := make([]chaintypes.MinerID, len(stakes))
	for i, s := range stakes {
		ids[i] = miner(byte(i + 1))
		topMiners = append(topMiners, roundrobin.MinerStake{ID: ids[i], Stake: s})
	}

	queue := roundrobin.GetNextMiners(nil, 240, topMiners, 240)
	require.Len(t, queue, 240)

	counts := countOccurrences(queue)
	for i, s := range stakes {
		require.Equal(t, int(s), counts[ids[i]], "miner %d with stake %d", i, s)
	}
}

func TestGetNextMinersSplitsTwoMinersBySharedPool(t *testing.T) {
	small := miner(1)
	big := miner(2)
	topMiners := []roundrobin.MinerStake{
		{ID: small, Stake: 2000},
		{ID: big, Stake: 10000},
	}

	queue := roundrobin.GetNextMiners(nil, 240, topMiners, 240)
	require.Len(t, queue, 240)

	counts := countOccurrences(queue)
	require.Equal(t, 60, counts[small])
	require.Equal(t, 180, counts[big])
}

func TestGetNextMinersIsDeterministic(t *testing.T) {
	topMiners := []roundrobin.MinerStake{
		{ID: miner(1), Stake: 5},
		{ID: miner(2), Stake: 7},
		{ID: miner(3), Stake: 3},
	}
	a := roundrobin.GetNextMiners(nil, 240, topMiners, 50)
	b := roundrobin.GetNextMiners(nil, 240, topMiners, 50)
	require.Equal(t, a, b)
}

func TestTrimToSizeKeepsMostRecent(t *testing.T) {
	queue := []chaintypes.MinerID{miner(1), miner(2), miner(3)}
	trimmed := roundrobin.TrimToSize(queue, []chaintypes.MinerID{miner(4), miner(5)}, 4)
	require.Equal(t, []chaintypes.MinerID{miner(2), miner(3), miner(4), miner(5)}, trimmed)
}
