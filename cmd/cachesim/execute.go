package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/cachesim/logging"
	"github.com/sarchlab/cachesim/memref"
	"github.com/sarchlab/cachesim/simulator"
	"github.com/sarchlab/cachesim/stats"
	"github.com/sarchlab/cachesim/trace"
)

// errBudgetSpent stops the reader once the simulator wants no more
// references.
var errBudgetSpent = errors.New("reference budget spent")

// execute replays the trace, prints the report and writes every result file.
// The report is printed even when the trace ends with an error.
func execute(
	cmd *cobra.Command,
	s *simulator.Simulator,
	tracePath string,
	logger *logging.Logger,
) error {
	stopProfile, err := startCPUProfile(flags.cpuProfile)
	if err != nil {
		return err
	}
	defer stopProfile()

	r, err := trace.Open(tracePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	start := time.Now()
	simErr := simulate(ctx, s, r, flags.batchSize)

	logger.Info("simulation finished",
		"refs", s.Processed(),
		"elapsed", time.Since(start),
	)

	s.Report(cmd.OutOrStdout())

	errs := []error{simErr, s.Close()}

	if flags.record != "" {
		errs = append(errs, record(s, flags.record))
	}

	errs = append(errs, writeHeapProfile(flags.memProfile))
	logResources(logger)

	return errors.Join(errs...)
}

// simulate reads the trace on one goroutine and feeds the simulator on
// another. It returns when the trace ends, the budget is spent, or either
// side fails.
func simulate(
	ctx context.Context,
	s *simulator.Simulator,
	r *trace.Reader,
	batchSize int,
) error {
	if batchSize <= 0 {
		batchSize = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	batches := make(chan []memref.Ref, 4)

	g.Go(func() error {
		defer close(batches)
		return r.Stream(ctx, batchSize, batches)
	})

	g.Go(func() error {
		for batch := range batches {
			for _, ref := range batch {
				if err := s.Process(ref); err != nil {
					return err
				}
			}

			if s.Done() {
				return errBudgetSpent
			}
		}

		return nil
	})

	err := g.Wait()
	if errors.Is(err, errBudgetSpent) {
		return nil
	}

	return err
}

func record(s *simulator.Simulator, name string) error {
	rec, err := stats.NewRecorder(name)
	if err != nil {
		return err
	}

	if err := s.Record(rec); err != nil {
		_ = rec.Close()
		return err
	}

	return rec.Close()
}

func logResources(logger *logging.Logger) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("cannot inspect process", "error", err)
		return
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		logger.Warn("cannot read cpu usage", "error", err)
		return
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		logger.Warn("cannot read memory usage", "error", err)
		return
	}

	logger.LogResources(cpuPercent, mem.RSS)
}
