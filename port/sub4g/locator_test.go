package sub4g

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

func Test_Locator_StartsAtTopOfWindow(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	l := NewLocator(sim, DefaultWindows(), 0)

	r, err := l.Locate(64*1024, vmem.ModeCommit, 0)
	require.NoError(t, err)
	require.Equal(t, vmem.Addr(0xFFFF_0000), r.Base)
	require.Equal(t, 1, l.Attempts())
}

func Test_Locator_SkipsBelowCollisions(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	l := NewLocator(sim, DefaultWindows(), 0)

	// Occupy the top 1MB of the window.
	_, err := sim.Reserve(vmem.ReserveParams{Size: 1 << 20, Address: 0xFFF0_0000, Strict: true})
	require.NoError(t, err)

	r, err := l.Locate(64*1024, vmem.ModeReserve, 0)
	require.NoError(t, err)
	require.Equal(t, vmem.Addr(0xFFEF_0000), r.Base)
	require.Equal(t, 2, l.Attempts())

	r2, err := l.Locate(64*1024, vmem.ModeReserve, 0)
	require.NoError(t, err)
	require.Equal(t, vmem.Addr(0xFFEE_0000), r2.Base)
}

func Test_Locator_FallsThroughWindows(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	windows := []Window{
		{Low: 0x4000_0000, High: 0x4000_FFFF},
		{Low: 0x2000_0000, High: 0x2FFF_FFFF},
	}
	l := NewLocator(sim, windows, 0)

	r, err := l.Locate(64*1024, vmem.ModeReserve, 0)
	require.NoError(t, err)
	require.Equal(t, vmem.Addr(0x4000_0000), r.Base)

	// The first window is full now.
	r, err = l.Locate(64*1024, vmem.ModeReserve, 0)
	require.NoError(t, err)
	require.Equal(t, vmem.Addr(0x2FFF_0000), r.Base)
}

func Test_Locator_ExhaustedWindowFails(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	l := NewLocator(sim, []Window{{Low: 0x4000_0000, High: 0x4001_FFFF}}, 0)

	_, err := l.Locate(64*1024, vmem.ModeReserve, 0)
	require.NoError(t, err)
	_, err = l.Locate(64*1024, vmem.ModeReserve, 0)
	require.NoError(t, err)

	_, err = l.Locate(64*1024, vmem.ModeReserve, 0)
	require.ErrorIs(t, err, ErrNoWindow)
	require.Equal(t, 1, l.Failures())
}

func Test_Locator_UnsupportedProviderSkipsSearch(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{NoStrictAddress: true})
	l := NewLocator(sim, DefaultWindows(), 0)

	_, err := l.Locate(4096, vmem.ModeReserve, 0)
	require.ErrorIs(t, err, ErrUnsupported)
	require.Equal(t, 0, l.Attempts())
	require.Equal(t, 0, sim.Stats().ReserveCalls)
}

func Test_Locator_RoundsToPages(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	l := NewLocator(sim, DefaultWindows(), 0)

	r, err := l.Locate(1, vmem.ModeReserve, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(4096), r.Size)
	require.Equal(t, vmem.Addr(0xFFFF_F000), r.Base)

	_, err = l.Locate(0, vmem.ModeReserve, 0)
	require.ErrorIs(t, err, ErrBadSize)
}
