package sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashStringEncodesLowercaseHex(t *testing.T) {
	var h [32]byte
	h[0] = 0xab
	h[31] = 0x0f
	got := hashString(h)
	require.Len(t, got, 64)
	require.Equal(t, "ab", got[:2])
	require.Equal(t, "0f", got[62:])
}

func TestHashStringZeroValue(t *testing.T) {
	var h [32]byte
	require.Equal(t, strings.Repeat("00", 32), hashString(h))
}
