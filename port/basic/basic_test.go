package basic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

func Test_Basic_AllocateFree(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	a := New(sim)

	addr, err := a.Allocate(100)
	require.NoError(t, err)
	require.True(t, a.Owns(addr))

	b, err := sim.Bytes(addr, 100)
	require.NoError(t, err)
	require.Len(t, b, 100)

	require.NoError(t, a.Free(addr))
	require.False(t, a.Owns(addr))
	require.ErrorIs(t, a.Free(addr), ErrUnknownAddress)
	require.Equal(t, 0, sim.Stats().Regions)
}

func Test_Basic_NoAddressConstraint(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	a := New(sim)

	addr, err := a.Allocate(8)
	require.NoError(t, err)
	require.GreaterOrEqual(t, addr, vmem.Below4G)
}

func Test_Basic_ZeroAndShutdown(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	a := New(sim)

	_, err := a.Allocate(0)
	require.ErrorIs(t, err, ErrBadSize)

	for i := 0; i < 3; i++ {
		_, err := a.Allocate(4096)
		require.NoError(t, err)
	}
	require.Equal(t, 3, a.Live())

	require.NoError(t, a.Shutdown())
	require.Equal(t, 0, sim.Stats().Regions)
	_, err = a.Allocate(8)
	require.ErrorIs(t, err, ErrClosed)
}
