package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/config"
	"github.com/sarchlab/cachesim/simulator"
	"github.com/sarchlab/cachesim/stats"
)

var runFlags struct {
	knobs     string
	hierarchy string
	metric    string
}

var runCmd = &cobra.Command{
	Use:   "run [flags] <trace>",
	Short: "Simulate a cache hierarchy.",
	Long: `Simulate split L1 caches per core below a shared last-level cache, ` +
		`or the hierarchy described by a YAML file. "-" reads the trace ` +
		`from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runCache,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.knobs, "knobs", "", "JSON knobs file")
	runCmd.Flags().StringVar(&runFlags.hierarchy, "hierarchy", "",
		"YAML cache hierarchy replacing the two-level topology")
	runCmd.Flags().StringVar(&runFlags.metric, "metric", "",
		"print one counter per core and level, e.g. misses")
}

func loadCacheKnobs() (*config.Knobs, error) {
	k := config.DefaultKnobs()

	if runFlags.knobs != "" {
		var err error

		k, err = config.LoadKnobs(runFlags.knobs)
		if err != nil {
			return nil, err
		}
	}

	env, err := config.Environment(flags.envFiles...)
	if err != nil {
		return nil, err
	}

	if err := k.ApplyEnv(env); err != nil {
		return nil, err
	}

	if runFlags.hierarchy != "" {
		k.HierarchyFile = runFlags.hierarchy
	}

	applyCommon(&k.Common)

	return k, nil
}

func runCache(cmd *cobra.Command, args []string) error {
	k, err := loadCacheKnobs()
	if err != nil {
		return err
	}

	var metric stats.Metric
	if runFlags.metric != "" {
		metric, err = stats.ParseMetric(runFlags.metric)
		if err != nil {
			return err
		}
	}

	logger := newLogger(k.Verbose)

	s, err := simulator.NewCacheSimulator(k, simOptions(logger)...)
	if err != nil {
		return err
	}

	if err := execute(cmd, s, args[0], logger); err != nil {
		return err
	}

	if runFlags.metric == "" {
		return nil
	}

	return printMetric(cmd.OutOrStdout(), s, metric, k.NumCores)
}

// printMetric writes the counter of the first-level caches and the last
// level of every core.
func printMetric(w io.Writer, s *simulator.Simulator, m stats.Metric, cores int) error {
	levels := []struct {
		label string
		level int
		split simulator.Split
	}{
		{"L1I", simulator.LevelFirst, simulator.SplitInstruction},
		{"L1D", simulator.LevelFirst, simulator.SplitData},
		{"LL", simulator.LevelLast, simulator.SplitData},
	}

	for core := 0; core < cores; core++ {
		for _, l := range levels {
			v, err := s.CacheMetric(m, l.level, core, l.split)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "core %d %s %s: %d\n", core, l.label, m, v)
		}
	}

	return nil
}
