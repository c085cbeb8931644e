package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corechain/node/chaintypes"
)

func testKey(b byte) chaintypes.Key {
	var k chaintypes.Key
	k[0] = byte(chaintypes.TxTypeTransfer)
	k[len(k)-1] = b
	return k
}

func TestRecentFilter_AddThenHas(t *testing.T) {
	f := newRecentFilter(4, 8)
	k := testKey(1)
	require.False(t, f.Has(k))
	f.Add(k)
	require.True(t, f.Has(k))
}

func TestRecentFilter_RotatesOldestChunkOut(t *testing.T) {
	f := newRecentFilter(2, 4)
	var first chaintypes.Key
	for i := 0; i < 4; i++ {
		first = testKey(byte(i))
		f.Add(first)
	}
	require.True(t, f.Has(first))

	// Fill two more full chunks; the first chunk should rotate out of the
	// 2-chunk ring and its entries should no longer report as seen.
	for i := 4; i < 12; i++ {
		f.Add(testKey(byte(i)))
	}
	require.False(t, f.Has(testKey(0)))
	require.True(t, f.Has(testKey(11)))
}

func TestRecentFilter_DegenerateSizesClampToOne(t *testing.T) {
	f := newRecentFilter(0, 0)
	k := testKey(5)
	f.Add(k)
	require.True(t, f.Has(k))
}
