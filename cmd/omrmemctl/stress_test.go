package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-openj9/openj9-omr-sub008/config"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

func testStressOptions() stressOptions {
	return stressOptions{
		Count:     300,
		MinSize:   16,
		MaxSize:   4096,
		Workers:   1,
		FreeEvery: 2,
		Seed:      7,
	}
}

func findRow(t *testing.T, res *stressResult, name string) (int64, int64) {
	t.Helper()
	for _, row := range res.Categories {
		if row.Name == name {
			return row.Bytes, row.Allocs
		}
	}
	t.Fatalf("no category %q in report", name)
	return 0, 0
}

func Test_Stress_FreesEverything(t *testing.T) {
	res, err := runStress(context.Background(), config.Default(), testStressOptions())
	require.NoError(t, err)

	assert.Equal(t, 300, res.Allocations)
	assert.Equal(t, 300, res.Frees)
	assert.Zero(t, res.Corruptions)
	assert.GreaterOrEqual(t, res.Stats.Heaps, 1)
	assert.Len(t, res.Wrappers, res.Stats.Wrappers)

	bytes, allocs := findRow(t, res, "stress")
	assert.Zero(t, bytes)
	assert.Zero(t, allocs)
}

func Test_Stress_KeepLiveLeavesBlocksCharged(t *testing.T) {
	opts := testStressOptions()
	opts.KeepLive = true
	opts.FreeEvery = 0
	opts.Count = 40

	res, err := runStress(context.Background(), config.Default(), opts)
	require.NoError(t, err)
	assert.Zero(t, res.Frees)

	bytes, allocs := findRow(t, res, "stress")
	assert.Equal(t, int64(40), allocs)
	assert.Positive(t, bytes)
}

func Test_Stress_ConcurrentWorkers(t *testing.T) {
	opts := testStressOptions()
	opts.Workers = 4
	opts.Prime = 8 << 20

	res, err := runStress(context.Background(), config.Default(), opts)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Prime)
	assert.Equal(t, 4*opts.Count, res.Allocations)
	assert.Equal(t, res.Allocations, res.Frees)
	for _, w := range res.Wrappers {
		assert.LessOrEqual(t, uint64(w.Base)+w.Size, uint64(vmem.Below4G))
	}
}

func Test_Stress_LargeRequestsUseRegions(t *testing.T) {
	cfg := config.Default()
	cfg.Memory32.HeapSize = 64 << 10
	cfg.Memory32.CommitIncrement = 16 << 10

	opts := testStressOptions()
	opts.Count = 20
	opts.MinSize = 64 << 10
	opts.MaxSize = 128 << 10
	opts.FreeEvery = 0
	opts.KeepLive = true

	res, err := runStress(context.Background(), cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Stats.Regions)
	assert.Zero(t, res.Stats.Heaps)
}

func Test_Stress_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runStress(ctx, config.Default(), testStressOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func Test_Stress_BadOptions(t *testing.T) {
	opts := testStressOptions()
	opts.Workers = 0
	_, err := runStress(context.Background(), config.Default(), opts)
	require.Error(t, err)
}
