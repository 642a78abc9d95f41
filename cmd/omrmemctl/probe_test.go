package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-openj9/openj9-omr-sub008/config"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/sub4g"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

func Test_Probe_ReservesAndReleases(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{})
	res, err := probe(sim, config.Default().Memory32.Options(), 1<<20)
	require.NoError(t, err)

	assert.Equal(t, "0xfff00000", res.Base)
	assert.Equal(t, uint64(1<<20), res.Size)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, sim.Stats().Regions)
}

func Test_Probe_WithoutStrictSupport(t *testing.T) {
	sim := vmem.NewSim(vmem.SimConfig{NoStrictAddress: true})
	_, err := probe(sim, config.Default().Memory32.Options(), 1<<20)
	require.ErrorIs(t, err, sub4g.ErrUnsupported)
}
