//go:build linux

package vmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Sim_HugeReservationIsBackedLazily(t *testing.T) {
	s := NewSim(SimConfig{})

	const size = 64 << 30
	r, err := s.Reserve(ReserveParams{Size: size, Mode: ModeReserve})
	require.NoError(t, err)

	top := r.Base + Addr(size-4096)
	require.NoError(t, s.Commit(r, r.Base, 4096))
	require.NoError(t, s.Commit(r, top, 4096))
	require.Equal(t, uint64(8192), s.Stats().CommittedBytes)

	b, err := s.Bytes(top, 4096)
	require.NoError(t, err)
	b[4095] = 0x5A

	b, err = s.Bytes(top+4095, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0x5A), b[0])

	require.NoError(t, s.Release(r))
	require.Zero(t, s.Stats().CommittedBytes)
}
