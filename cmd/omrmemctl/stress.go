package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eclipse-openj9/openj9-omr-sub008/config"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/category"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/memory"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/sub4g"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// stressCategory is charged for every block the workload allocates.
const stressCategory category.Code = 0x100

type stressOptions struct {
	Count     int
	MinSize   config.Size
	MaxSize   config.Size
	Workers   int
	FreeEvery int
	Prime     config.Size
	Seed      int64
	KeepLive  bool
	PageSize  uint64
}

var stressOpts = stressOptions{
	Count:     10000,
	MinSize:   16,
	MaxSize:   4096,
	Workers:   1,
	FreeEvery: 2,
	Seed:      1,
}

func init() {
	cmd := newStressCmd()
	f := cmd.Flags()
	f.IntVarP(&stressOpts.Count, "count", "n", stressOpts.Count, "Allocations per worker")
	f.Var(sizeFlag{&stressOpts.MinSize}, "min-size", "Smallest request")
	f.Var(sizeFlag{&stressOpts.MaxSize}, "max-size", "Largest request")
	f.IntVarP(&stressOpts.Workers, "workers", "w", stressOpts.Workers, "Concurrent workers")
	f.IntVar(&stressOpts.FreeEvery, "free-every", stressOpts.FreeEvery, "Free the oldest live block after every N allocations (0 never)")
	f.Var(sizeFlag{&stressOpts.Prime}, "prime", "Ensure this much sub-4GB capacity before the run")
	f.Int64Var(&stressOpts.Seed, "seed", stressOpts.Seed, "Random seed for request sizes")
	f.BoolVar(&stressOpts.KeepLive, "keep-live", false, "Report before freeing the surviving blocks")
	f.Uint64Var(&stressOpts.PageSize, "page-size", 0, "Simulated page size (0 for 4KiB)")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run an allocation workload on a simulated address space",
		Long: `The stress command allocates and frees tagged sub-4GB blocks on a simulated
64-bit address space and reports allocator statistics, the wrapper chain and
per-category accounting.

Example:
  omrmemctl stress --count 50000 --max-size 64KiB
  omrmemctl stress --workers 8 --prime 32MiB --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runStress(cmd.Context(), cfg, stressOpts)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return res.write(cmd.OutOrStdout())
		},
	}
}

type stressResult struct {
	Allocations int                 `json:"allocations"`
	Frees       int                 `json:"frees"`
	Bytes       uint64              `json:"bytes"`
	Corruptions int                 `json:"corruptions"`
	Prime       string              `json:"prime,omitempty"`
	Stats       sub4g.Stats         `json:"stats"`
	Wrappers    []sub4g.WrapperInfo `json:"wrappers"`
	Categories  []category.Row      `json:"categories"`

	cats *category.Registry
}

// runStress builds a port over a fresh simulated provider and drives the
// workload. Every worker checks its blocks' contents before freeing them.
func runStress(ctx context.Context, c config.Config, opts stressOptions) (*stressResult, error) {
	if opts.Workers < 1 || opts.Count < 0 {
		return nil, fmt.Errorf("stress: need at least one worker and a non-negative count")
	}
	if opts.MinSize > opts.MaxSize {
		return nil, fmt.Errorf("stress: min size %v above max size %v", opts.MinSize, opts.MaxSize)
	}

	c.Categories = append(c.Categories, config.Category{
		Code: uint32(stressCategory), Name: "stress", Parent: uint32(category.PortLibrary),
	})
	sim := vmem.NewSim(vmem.SimConfig{PageSize: opts.PageSize})
	port, err := memory.Startup(c, sim, nil, memory.Options{})
	if err != nil {
		return nil, err
	}

	res := &stressResult{cats: port.Categories()}
	if opts.Prime > 0 {
		res.Prime = port.EnsureCapacity32(uint64(opts.Prime)).String()
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		seed := opts.Seed + int64(w)
		g.Go(func() error {
			st, err := stressWorker(gctx, port, opts, seed)
			mu.Lock()
			res.Allocations += st.allocs
			res.Frees += st.frees
			res.Bytes += st.bytes
			mu.Unlock()
			return err
		})
	}
	werr := g.Wait()

	res.Stats = port.Sub4G().Stats()
	res.Wrappers = port.Sub4G().Wrappers()
	res.Categories = port.Categories().Rows()
	res.Corruptions = port.Diagnostics().Corruptions()

	return res, errors.Join(werr, port.Shutdown())
}

type workerStats struct {
	allocs int
	frees  int
	bytes  uint64
}

type liveBlock struct {
	addr vmem.Addr
	fill byte
}

func stressWorker(ctx context.Context, port *memory.Port, opts stressOptions, seed int64) (workerStats, error) {
	var st workerStats
	rng := rand.New(rand.NewSource(seed))
	span := uint64(opts.MaxSize-opts.MinSize) + 1

	var live []liveBlock
	free := func(b liveBlock) error {
		payload, err := port.Bytes(b.addr)
		if err != nil {
			return err
		}
		for i, c := range payload {
			if c != b.fill {
				return fmt.Errorf("stress: block %v byte %d is 0x%02x, want 0x%02x", b.addr, i, c, b.fill)
			}
		}
		if err := port.Free32(b.addr); err != nil {
			return err
		}
		st.frees++
		return nil
	}

	for i := 0; i < opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		n := uint64(opts.MinSize) + rng.Uint64()%span
		addr, err := port.Allocate32(n, "omrmemctl stress", stressCategory)
		if err != nil {
			return st, fmt.Errorf("stress: allocation %d of %d bytes: %w", i, n, err)
		}
		st.allocs++
		st.bytes += n

		b := liveBlock{addr: addr, fill: byte(rng.Intn(256))}
		payload, err := port.Bytes(addr)
		if err != nil {
			return st, err
		}
		for j := range payload {
			payload[j] = b.fill
		}
		live = append(live, b)

		if opts.FreeEvery > 0 && (i+1)%opts.FreeEvery == 0 {
			if err := free(live[0]); err != nil {
				return st, err
			}
			live = live[1:]
		}
	}

	if opts.KeepLive {
		return st, nil
	}
	for _, b := range live {
		if err := free(b); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (r *stressResult) write(w io.Writer) error {
	printInfo(w, "Allocations: %d (%d bytes requested)\n", r.Allocations, r.Bytes)
	printInfo(w, "Frees:       %d\n", r.Frees)
	if r.Prime != "" {
		printInfo(w, "Prime:       %s\n", r.Prime)
	}
	printInfo(w, "Corruptions: %d\n\n", r.Corruptions)

	s := r.Stats
	printInfo(w, "Wrappers: %d (%d heaps, %d regions), %v reserved\n",
		s.Wrappers, s.Heaps, s.Regions, config.Size(s.TotalReserved))
	printInfo(w, "Created:  %d heaps, %d regions, %d raw fallbacks\n",
		s.HeapCreates, s.RegionCreates, s.RawFallbacks)
	printInfo(w, "Growth:   %d grows, %d failures, growable=%v\n", s.Grows, s.GrowFailures, s.SubCommitGrowable)
	printInfo(w, "Locator:  %d attempts, %d failures\n\n", s.LocatorAttempts, s.LocatorFailures)

	if verbose {
		for _, wr := range r.Wrappers {
			kind := "region"
			if wr.HasHeap {
				kind = "heap"
			}
			if wr.SubCommit {
				kind += " (sub-commit)"
			}
			printVerbose(w, "  #%-4d %v  %-10v %-18s live=%d\n", wr.Handle, wr.Base, config.Size(wr.Size), kind, wr.Live)
		}
		printVerbose(w, "\n")
	}

	if quiet {
		return nil
	}
	return r.cats.WriteReport(w, reportTag())
}
