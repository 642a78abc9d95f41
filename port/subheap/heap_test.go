package subheap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

const testBase vmem.Addr = 0x2000_0000

func newTestHeap(t *testing.T, size uint64) (*Heap, *vmem.Sim, vmem.Region) {
	t.Helper()

	sim := vmem.NewSim(vmem.SimConfig{})
	r, err := sim.Reserve(vmem.ReserveParams{Size: 1 << 20, Address: testBase, Strict: true, Mode: vmem.ModeCommit})
	require.NoError(t, err)

	h, err := New(sim, r.Base, size, Options{})
	require.NoError(t, err)
	return h, sim, r
}

func Test_Heap_NewWritesHeader(t *testing.T) {
	h, sim, _ := newTestHeap(t, 4096)

	hdr, err := sim.Bytes(testBase, format.HeapHeaderSize)
	require.NoError(t, err)
	require.Equal(t, format.HeapMagic, format.ReadU32(hdr, format.HeapMagicOffset))
	require.Equal(t, uint64(4096), format.ReadU64(hdr, format.HeapSizeOffset))

	require.Equal(t, uint64(4096-format.HeapHeaderSize), h.FreeBytes())
	require.Equal(t, uint64(4096-format.HeapHeaderSize-format.CellHeaderSize), h.LargestFree())
	require.NoError(t, h.Check())
}

func Test_Heap_NewRejectsBadSpans(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	r, err := sim.Reserve(vmem.ReserveParams{Size: 4096, Address: testBase, Strict: true, Mode: vmem.ModeCommit})
	require.NoError(t, err)

	_, err = New(sim, r.Base, 40, Options{})
	require.ErrorIs(t, err, ErrTooSmall)

	_, err = New(sim, r.Base+4, 1024, Options{})
	require.ErrorIs(t, err, ErrMisaligned)

	_, err = New(sim, r.End()+0x10000, 1024, Options{})
	require.ErrorIs(t, err, vmem.ErrBadRegion)
}

func Test_Heap_AllocateAlignedAndDistinct(t *testing.T) {
	h, _, _ := newTestHeap(t, 64*1024)

	seen := map[vmem.Addr]bool{}
	for _, n := range []uint64{1, 7, 8, 9, 100, 1000, 3} {
		addr, err := h.Allocate(n)
		require.NoError(t, err)
		require.True(t, format.IsAligned(uint64(addr), format.Granule))
		require.False(t, seen[addr])
		seen[addr] = true

		got, err := h.QuerySize(addr)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got, n)
	}
	require.Equal(t, 7, h.Live())
	require.NoError(t, h.Check())
}

func Test_Heap_FreeCoalescesBothWays(t *testing.T) {
	h, _, _ := newTestHeap(t, 4096)
	initial := h.LargestFree()

	a, err := h.Allocate(64)
	require.NoError(t, err)
	b, err := h.Allocate(64)
	require.NoError(t, err)
	c, err := h.Allocate(64)
	require.NoError(t, err)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c))
	require.NoError(t, h.Free(b))

	require.Equal(t, 0, h.Live())
	require.Equal(t, initial, h.LargestFree())
	require.Equal(t, 1, h.free.count())
	require.Positive(t, h.Stats().CoalesceForward)
	require.Positive(t, h.Stats().CoalesceBackward)
	require.NoError(t, h.Check())
}

func Test_Heap_BestFitReusesSmallestHole(t *testing.T) {
	h, _, _ := newTestHeap(t, 64*1024)

	big, err := h.Allocate(512)
	require.NoError(t, err)
	_, err = h.Allocate(16)
	require.NoError(t, err)
	small, err := h.Allocate(64)
	require.NoError(t, err)
	_, err = h.Allocate(16)
	require.NoError(t, err)

	require.NoError(t, h.Free(big))
	require.NoError(t, h.Free(small))

	got, err := h.Allocate(60)
	require.NoError(t, err)
	require.Equal(t, small, got)
}

func Test_Heap_Exhaustion(t *testing.T) {
	const heapSize = 4096
	h, _, _ := newTestHeap(t, heapSize)

	n := uint64(100)
	want := Capacity(heapSize, n)
	for i := uint64(0); i < want; i++ {
		_, err := h.Allocate(n)
		require.NoError(t, err, "allocation %d", i)
	}
	_, err := h.Allocate(n)
	require.ErrorIs(t, err, ErrNoSpace)
	require.Equal(t, 1, h.Stats().AllocFailures)
}

func Test_Heap_FreeErrors(t *testing.T) {
	h, _, _ := newTestHeap(t, 4096)

	a, err := h.Allocate(32)
	require.NoError(t, err)
	require.NoError(t, h.Free(a))

	require.ErrorIs(t, h.Free(a), ErrNotAllocated)
	require.ErrorIs(t, h.Free(testBase), ErrOutOfRange)
	require.ErrorIs(t, h.Free(h.End()+8), ErrOutOfRange)
	require.ErrorIs(t, h.Free(a+4), ErrMisaligned)
}

func Test_Heap_GrowExtendsTail(t *testing.T) {
	h, _, _ := newTestHeap(t, 4096)

	_, err := h.Allocate(4000)
	require.NoError(t, err)
	_, err = h.Allocate(4000)
	require.ErrorIs(t, err, ErrNoSpace)

	require.NoError(t, h.Grow(8192))
	require.Equal(t, uint64(4096+8192), h.Size())

	_, err = h.Allocate(4000)
	require.NoError(t, err)
	require.NoError(t, h.Check())

	require.ErrorIs(t, h.Grow(12), ErrMisaligned)
}

func Test_Heap_GrowMergesFreeTail(t *testing.T) {
	h, _, _ := newTestHeap(t, 4096)
	before := h.LargestFree()

	require.NoError(t, h.Grow(4096))
	require.Equal(t, before+4096, h.LargestFree())
	require.Equal(t, 1, h.free.count())
}

func Test_Heap_RandomWorkloadKeepsInvariants(t *testing.T) {
	h, _, _ := newTestHeap(t, 256*1024)
	rng := rand.New(rand.NewSource(42))

	var live []vmem.Addr
	for i := 0; i < 5000; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			j := rng.Intn(len(live))
			require.NoError(t, h.Free(live[j]))
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		addr, err := h.Allocate(uint64(rng.Intn(2000) + 1))
		if err != nil {
			require.ErrorIs(t, err, ErrNoSpace)
			continue
		}
		live = append(live, addr)
	}
	require.Equal(t, len(live), h.Live())
	require.NoError(t, h.Check())

	for _, a := range live {
		require.NoError(t, h.Free(a))
	}
	require.Equal(t, 1, h.free.count())
	require.NoError(t, h.Check())
}

func Test_SizeClassTable_Classes(t *testing.T) {
	table := newSizeClassTable(DefaultConfig)

	require.Equal(t, 0, table.class(16))
	require.Equal(t, 0, table.class(31))
	require.Equal(t, 1, table.class(32))
	require.Equal(t, table.numClasses()-1, table.class(1<<30))

	prev := -1
	for size := uint64(16); size < 128*1024; size += 8 {
		c := table.class(size)
		require.GreaterOrEqual(t, c, prev)
		prev = c
	}
}

func Test_Capacity(t *testing.T) {
	require.Equal(t, uint64(0), Capacity(32, 8))
	require.Equal(t, uint64(16), CellSize(1))
	require.Equal(t, uint64(16), CellSize(8))
	require.Equal(t, uint64(24), CellSize(9))
	require.Equal(t, uint64((4096-32)/112), Capacity(4096, 100))
}
