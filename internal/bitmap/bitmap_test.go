package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func allFree(count uint32) *Bitmap {
	raw := make([]byte, (count+7)/8)
	for i := range raw {
		raw[i] = 0xFF
	}
	b := New(raw, count)
	b.setAllocated(0)
	return b
}

func TestAllocateNeverReturnsBlockZero(t *testing.T) {
	b := allFree(8)
	for i := 0; i < 7; i++ {
		block, ok := b.Allocate()
		require.True(t, ok)
		require.NotZero(t, block)
	}
	_, ok := b.Allocate()
	require.False(t, ok, "expected exhaustion after allocating all non-zero blocks")
}

func TestFreeRestoresAllocatability(t *testing.T) {
	b := allFree(4)
	block, ok := b.Allocate()
	require.True(t, ok)
	before := b.CountFree()
	b.Free(block)
	require.Equal(t, before+1, b.CountFree())
}

func TestCountFreeExcludesSentinel(t *testing.T) {
	b := allFree(8)
	require.EqualValues(t, 7, b.CountFree())
}

func TestIsFreeRangeCheck(t *testing.T) {
	b := allFree(4)
	_, err := b.IsFree(99)
	require.Error(t, err)
}

func TestBytesRoundTrip(t *testing.T) {
	b := allFree(16)
	b.Allocate()
	raw := b.Bytes()
	b2 := New(raw, 16)
	require.Equal(t, b.CountFree(), b2.CountFree())
}
