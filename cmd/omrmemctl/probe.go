package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eclipse-openj9/openj9-omr-sub008/config"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/sub4g"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

var probeSize = config.Size(sub4g.DefaultHeapSize)

func init() {
	cmd := newProbeCmd()
	cmd.Flags().Var(sizeFlag{&probeSize}, "size", "Bytes to reserve")
	rootCmd.AddCommand(cmd)
}

type probeResult struct {
	Base     string `json:"base"`
	Size     uint64 `json:"size"`
	PageSize uint64 `json:"page_size"`
	Attempts int    `json:"attempts"`
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Reserve and release one sub-4GB region on this host",
		Long: `The probe command asks the host's virtual memory for a strict reservation
inside the configured windows, reports where it landed and releases it.
Nothing is committed.

Example:
  omrmemctl probe --size 64MiB`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vm, err := vmem.NewMmap()
			if err != nil {
				return err
			}
			res, err := probe(vm, cfg.Memory32.Options(), uint64(probeSize))
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printInfo(cmd.OutOrStdout(), "reserved %v at %s after %d attempts (page size %d)\n",
				config.Size(res.Size), res.Base, res.Attempts, res.PageSize)
			return nil
		},
	}
}

func probe(vm vmem.Provider, opts sub4g.Options, size uint64) (probeResult, error) {
	loc := sub4g.NewLocator(vm, opts.Windows, opts.SearchStep)
	r, err := loc.Locate(size, vmem.ModeReserve, 0)
	if err != nil {
		return probeResult{}, fmt.Errorf("probe: %w", err)
	}
	res := probeResult{
		Base:     r.Base.String(),
		Size:     r.Size,
		PageSize: vm.PageSize(),
		Attempts: loc.Attempts(),
	}
	if err := vm.Release(r); err != nil {
		return res, fmt.Errorf("probe: release: %w", err)
	}
	return res, nil
}
