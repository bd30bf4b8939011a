package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/config"
	"github.com/sarchlab/cachesim/logging"
	"github.com/sarchlab/cachesim/simulator"
)

// globalFlags are shared by every command.
type globalFlags struct {
	verbose    int
	jsonLog    bool
	envFiles   []string
	statsDir   string
	record     string
	cpuProfile string
	memProfile string
	batchSize  int
	progress   time.Duration
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "Trace-driven cache and TLB hierarchy simulator.",
	Long: `cachesim replays a memory-reference trace through a simulated ` +
		`cache or TLB hierarchy and reports hits, misses and invalidations ` +
		`for every level. Knobs come from a JSON file and can be overridden ` +
		`by CACHESIM_* variables in the environment or in .env files.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&flags.verbose, "verbose", "v",
		"increase logging, repeat for debug output")
	pf.BoolVar(&flags.jsonLog, "json-log", false, "log JSON lines instead of text")
	pf.StringSliceVar(&flags.envFiles, "env-file", []string{".env"},
		"files with "+config.EnvPrefix+"* overrides")
	pf.StringVar(&flags.statsDir, "stats-dir", "",
		"directory for reports and page usage files")
	pf.StringVar(&flags.record, "record", "",
		"store the results in this SQLite database")
	pf.StringVar(&flags.cpuProfile, "cpuprofile", "", "write a CPU profile to file")
	pf.StringVar(&flags.memProfile, "memprofile", "", "write a heap profile to file")
	pf.IntVar(&flags.batchSize, "batch", 4096, "references read per batch")
	pf.DurationVar(&flags.progress, "progress", 10*time.Second,
		"minimum time between progress lines, 0 disables them")
}

// newLogger picks the handler and the level from the flags. The knob
// verbosity applies when no -v flag is given.
func newLogger(knobVerbose int) *logging.Logger {
	verbose := max(flags.verbose, knobVerbose)
	level := logging.ParseLevel(verbose)

	if flags.jsonLog {
		return logging.NewJSONLogger(level)
	}

	return logging.NewTextLogger(level)
}

func simOptions(logger *logging.Logger) []simulator.Option {
	return []simulator.Option{
		simulator.WithLogger(logger),
		simulator.WithProgressInterval(flags.progress),
	}
}

// applyCommon overrides the knobs shared by both simulators with the
// environment and the global flags.
func applyCommon(c *config.Common) {
	if flags.statsDir != "" {
		c.StatsDir = flags.statsDir
	}
}
