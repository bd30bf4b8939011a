package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/config"
)

var configFlags struct {
	tlb bool
	out string
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print or save the effective knobs.",
	Long: `Print the knobs after the knobs file, the environment and the ` +
		`flags are applied. With --hierarchy the hierarchy is validated ` +
		`and printed too.`,
	Args: cobra.NoArgs,
	RunE: showConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	f := configCmd.Flags()
	f.BoolVar(&configFlags.tlb, "tlb", false, "use the TLB knobs")
	f.StringVar(&configFlags.out, "out", "", "save the knobs to this file")
	f.StringVar(&runFlags.knobs, "knobs", "", "JSON knobs file")
	f.StringVar(&runFlags.hierarchy, "hierarchy", "", "YAML cache hierarchy file")
}

func showConfig(cmd *cobra.Command, _ []string) error {
	if configFlags.tlb {
		tlbFlags.knobs = runFlags.knobs

		k, err := loadTLBKnobs()
		if err != nil {
			return err
		}

		if err := k.Validate(); err != nil {
			return err
		}

		return emitKnobs(cmd, k, k.Save)
	}

	k, err := loadCacheKnobs()
	if err != nil {
		return err
	}

	if err := k.Validate(); err != nil {
		return err
	}

	if err := emitKnobs(cmd, k, k.Save); err != nil {
		return err
	}

	if k.HierarchyFile == "" {
		return nil
	}

	h, err := config.LoadHierarchy(k.HierarchyFile)
	if err != nil {
		return err
	}

	if err := h.Validate(k.LineSize, k.NumCores); err != nil {
		return err
	}

	data, err := h.Marshal()
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(data)

	return err
}

func emitKnobs(cmd *cobra.Command, k any, save func(string) error) error {
	if configFlags.out != "" {
		return save(configFlags.out)
	}

	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return nil
}
