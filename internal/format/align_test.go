package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlign8(t *testing.T) {
	cases := []struct {
		in, want uint64
	}{
		{0, 0},
		{1, 8},
		{7, 8},
		{8, 8},
		{9, 16},
		{4095, 4096},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Align8(tc.in), "Align8(%d)", tc.in)
	}
}

func TestAlignUpDown(t *testing.T) {
	require.Equal(t, uint64(4096), AlignUp(1, 4096))
	require.Equal(t, uint64(4096), AlignUp(4096, 4096))
	require.Equal(t, uint64(8192), AlignUp(4097, 4096))
	require.Equal(t, uint64(0), AlignDown(4095, 4096))
	require.Equal(t, uint64(0xFFFFF000), AlignDown(0xFFFFFFFF, 4096))
	require.True(t, IsAligned(0x10000, 4096))
	require.False(t, IsAligned(0x10008, 4096))
}

func TestIsPowerOfTwo(t *testing.T) {
	require.True(t, IsPowerOfTwo(1))
	require.True(t, IsPowerOfTwo(4096))
	require.False(t, IsPowerOfTwo(0))
	require.False(t, IsPowerOfTwo(12))
}

func TestWordEncoding(t *testing.T) {
	b := make([]byte, 16)
	PutU32(b, 0, 0xB1234567)
	PutI64(b, 8, -48)
	require.Equal(t, []byte{0x67, 0x45, 0x23, 0xB1}, b[:4])
	require.Equal(t, uint32(0xB1234567), ReadU32(b, 0))
	require.Equal(t, int64(-48), ReadI64(b, 8))

	PutU64(b, 8, 0x1122334455667788)
	require.Equal(t, uint64(0x1122334455667788), ReadU64(b, 8))
}
