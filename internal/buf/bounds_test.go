package buf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddOverflowSafe(t *testing.T) {
	sum, ok := AddOverflowSafe(10, 5)
	require.True(t, ok)
	require.Equal(t, uint64(15), sum)

	_, ok = AddOverflowSafe(math.MaxUint64, 1)
	require.False(t, ok, "expected overflow when adding to MaxUint64")
}

func TestMulOverflowSafe(t *testing.T) {
	p, ok := MulOverflowSafe(1<<20, 8)
	require.True(t, ok)
	require.Equal(t, uint64(8<<20), p)

	_, ok = MulOverflowSafe(math.MaxUint64/2, 3)
	require.False(t, ok)

	p, ok = MulOverflowSafe(0, math.MaxUint64)
	require.True(t, ok)
	require.Zero(t, p)
}

func TestWithin(t *testing.T) {
	require.True(t, Within(0x1000, 0x1000, 0x1000, 0x1000))
	require.True(t, Within(0x1000, 0x1000, 0x1800, 8))
	require.False(t, Within(0x1000, 0x1000, 0x0FF8, 16), "starts below base")
	require.False(t, Within(0x1000, 0x1000, 0x1FF8, 16), "runs past limit")
	require.False(t, Within(0x1000, 0x1000, math.MaxUint64-4, 16), "overflows")
}

func TestCheckRange(t *testing.T) {
	off, err := CheckRange(0x10000, 0x4000, 0x10020, 32)
	require.NoError(t, err)
	require.Equal(t, uint64(0x20), off)

	_, err = CheckRange(0x10000, 0x4000, 0x13FF0, 32)
	require.ErrorContains(t, err, "bounds")

	_, err = CheckRange(0x10000, 0x4000, 0xFFF0, 8)
	require.ErrorContains(t, err, "below base")

	_, err = CheckRange(0x10000, 0x4000, math.MaxUint64, 2)
	require.ErrorContains(t, err, "overflow")
}

func TestSliceAndHas(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	got, ok := Slice(data, 1, 3)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, got)

	_, ok = Slice(data, 4, 2)
	require.False(t, ok, "Slice should fail when extending beyond len")
	require.False(t, Has(data, 2, 4))
	require.True(t, Has(data, 2, 1))

	_, ok = Slice(data, -1, 1)
	require.False(t, ok)
	_, ok = Slice(data, 1, -1)
	require.False(t, ok)
	_, ok = Slice(data, 1, math.MaxInt)
	require.False(t, ok)
}
