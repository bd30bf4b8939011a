package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/config"
	"github.com/sarchlab/cachesim/simulator"
)

var tlbFlags struct {
	knobs string
}

var tlbCmd = &cobra.Command{
	Use:   "tlb [flags] <trace>",
	Short: "Simulate per-core TLBs.",
	Long: `Simulate L1 instruction and data TLBs below an L2 TLB on every ` +
		`core. Entries are tagged with the process ID.`,
	Args: cobra.ExactArgs(1),
	RunE: runTLB,
}

func init() {
	rootCmd.AddCommand(tlbCmd)

	tlbCmd.Flags().StringVar(&tlbFlags.knobs, "knobs", "", "JSON TLB knobs file")
}

func loadTLBKnobs() (*config.TLBKnobs, error) {
	k := config.DefaultTLBKnobs()

	if tlbFlags.knobs != "" {
		var err error

		k, err = config.LoadTLBKnobs(tlbFlags.knobs)
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

	applyCommon(&k.Common)

	return k, nil
}

func runTLB(cmd *cobra.Command, args []string) error {
	k, err := loadTLBKnobs()
	if err != nil {
		return err
	}

	logger := newLogger(k.Verbose)

	s, err := simulator.NewTLBSimulator(k, simOptions(logger)...)
	if err != nil {
		return err
	}

	return execute(cmd, s, args[0], logger)
}
