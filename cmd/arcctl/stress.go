package main

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/arckit/arc"
)

var (
	stressOps     int
	stressSeed    uint64
	stressWorkers int
	stressSlots   int
	stressMaxSize int
)

func init() {
	cmd := newStressCmd()
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run randomized allocate/retain/release traffic",
		Long: `The stress command drives random allocate, retain and release operations
against one registry from several goroutines. After every operation it checks
that a block's reference count equals 1 + retains - releases and that its
payload is intact. Every block is released at the end; anything left over is
reported as a leak.

Example:
  arcctl stress
  arcctl stress --ops 100000 --workers 8 --backend arena
  arcctl stress --seed 42 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(args)
		},
	}

	cmd.Flags().IntVar(&stressOps, "ops", 10000, "Operations per worker")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&stressWorkers, "workers", 4, "Concurrent workers")
	cmd.Flags().IntVar(&stressSlots, "slots", 64, "Blocks tracked per worker")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 512, "Largest payload size in bytes")

	return cmd
}

// stressConfig is one stress run's parameters.
type stressConfig struct {
	Ops     int
	Seed    uint64
	Workers int
	Slots   int
	MaxSize int
}

// StressReport summarizes a stress run.
type StressReport struct {
	Backend    string    `json:"backend"`
	Policy     string    `json:"policy"`
	Workers    int       `json:"workers"`
	Ops        int       `json:"ops"`
	Seed       uint64    `json:"seed"`
	Duration   string    `json:"duration"`
	Stats      arc.Stats `json:"stats"`
	Mismatches int       `json:"mismatches"`
	Leaked     int64     `json:"leaked_blocks"`
}

func runStress(args []string) error {
	cfg, err := configFromFlags()
	if err != nil {
		return err
	}
	sc := stressConfig{
		Ops:     stressOps,
		Seed:    stressSeed,
		Workers: stressWorkers,
		Slots:   stressSlots,
		MaxSize: stressMaxSize,
	}

	reg, err := newRegistry(cfg, arc.LogReporter{Logger: newLogger()})
	if err != nil {
		return err
	}
	report, err := stress(reg, sc)
	closeErr := reg.Close()
	if err != nil {
		return err
	}
	report.Backend = cfg.Backend

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printStress(report)
	}

	if closeErr != nil {
		return closeErr
	}
	if report.Mismatches > 0 {
		return fmt.Errorf("%d reference count mismatches", report.Mismatches)
	}
	return nil
}

// stress runs sc against reg and releases everything it allocated. The
// registry is left open so callers can inspect it.
func stress(reg *arc.Registry, sc stressConfig) (StressReport, error) {
	if sc.Workers < 1 || sc.Slots < 1 || sc.MaxSize < 1 || sc.Ops < 0 {
		return StressReport{}, fmt.Errorf("workers, slots and max-size must be positive")
	}

	start := time.Now()
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		mismatches int
	)
	for w := range sc.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := newStressWorker(reg, sc, w).run()
			mu.Lock()
			mismatches += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	stats := reg.Stats()
	return StressReport{
		Policy:     reg.Policy().String(),
		Workers:    sc.Workers,
		Ops:        sc.Ops * sc.Workers,
		Seed:       sc.Seed,
		Duration:   time.Since(start).Round(time.Microsecond).String(),
		Stats:      stats,
		Mismatches: mismatches,
		Leaked:     stats.LiveBlocks,
	}, nil
}

// stressSlot is a block owned by one worker along with its expected count.
type stressSlot struct {
	p    arc.Ptr
	refs uint64
	fill byte
	size int
}

type stressWorker struct {
	reg        *arc.Registry
	cfg        stressConfig
	rng        *rand.Rand
	slots      []stressSlot
	mismatches int
}

func newStressWorker(reg *arc.Registry, cfg stressConfig, id int) *stressWorker {
	return &stressWorker{
		reg:   reg,
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, uint64(id))),
		slots: make([]stressSlot, cfg.Slots),
	}
}

// run performs the worker's operations, then drains every slot. It returns
// the number of mismatches observed.
func (w *stressWorker) run() int {
	for range w.cfg.Ops {
		s := &w.slots[w.rng.IntN(len(w.slots))]
		switch {
		case s.p == arc.Nil:
			w.allocate(s)
		case w.rng.IntN(2) == 0:
			if _, err := w.reg.Retain(s.p); err != nil {
				w.mismatch("retain %s: %v", s.p, err)
				continue
			}
			s.refs++
		default:
			w.release(s)
		}
		if s.p != arc.Nil {
			w.check(s)
		}
	}
	for i := range w.slots {
		for w.slots[i].p != arc.Nil {
			w.release(&w.slots[i])
		}
	}
	return w.mismatches
}

func (w *stressWorker) allocate(s *stressSlot) {
	size := 1 + w.rng.IntN(w.cfg.MaxSize)
	p, err := w.reg.Allocate(size)
	if err != nil {
		// Refusals are counted by the registry; the slot stays empty.
		printVerbose("allocate %d: %v\n", size, err)
		return
	}
	b, err := w.reg.Bytes(p)
	if err != nil {
		w.mismatch("bytes %s: %v", p, err)
		return
	}
	fill := byte(w.rng.IntN(256))
	for i := range b {
		b[i] = fill
	}
	*s = stressSlot{p: p, refs: 1, fill: fill, size: size}
}

func (w *stressWorker) release(s *stressSlot) {
	if err := w.reg.Release(s.p); err != nil {
		w.mismatch("release %s: %v", s.p, err)
		*s = stressSlot{}
		return
	}
	s.refs--
	if s.refs == 0 {
		*s = stressSlot{}
	}
}

func (w *stressWorker) check(s *stressSlot) {
	if got := w.reg.RefCount(s.p); got != s.refs {
		w.mismatch("%s: count %d, want %d", s.p, got, s.refs)
	}
	b, err := w.reg.Bytes(s.p)
	if err != nil {
		w.mismatch("bytes %s: %v", s.p, err)
		return
	}
	if len(b) != s.size || !bytes.Equal(b, bytes.Repeat([]byte{s.fill}, s.size)) {
		w.mismatch("%s: payload corrupted", s.p)
	}
}

func (w *stressWorker) mismatch(format string, args ...any) {
	w.mismatches++
	printVerbose(format+"\n", args...)
}

func printStress(r StressReport) {
	printInfo("\nStress run (%s, %s)\n", r.Policy, r.Backend)
	printInfo("  Workers:        %d\n", r.Workers)
	printInfo("  Operations:     %s\n", formatNumber(int64(r.Ops)))
	printInfo("  Seed:           %d\n", r.Seed)
	printInfo("  Duration:       %s\n", r.Duration)
	printInfo("\nRegistry\n")
	printInfo("  Allocations:    %s\n", formatNumber(r.Stats.Allocs))
	printInfo("  Failures:       %s\n", formatNumber(r.Stats.AllocFailures))
	printInfo("  Frees:          %s\n", formatNumber(r.Stats.Frees))
	printInfo("  Retains:        %s\n", formatNumber(r.Stats.Retains))
	printInfo("  Releases:       %s\n", formatNumber(r.Stats.Releases))
	printInfo("  Violations:     %s\n", formatNumber(r.Stats.Violations))
	printInfo("  Backend:        %s reserved\n", formatBytes(r.Stats.Backend.Reserved))
	printInfo("\nMismatches:       %d\n", r.Mismatches)
	printInfo("Leaked blocks:    %d\n", r.Leaked)
}
