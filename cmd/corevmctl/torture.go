package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tortureCmd = &cobra.Command{
	Use:   "torture",
	Short: "Start a runtime with RECYCLE_TORTURE=1 and report its depletion budget",
	Long: `torture sets RECYCLE_TORTURE=1 for the duration of the command, which
sets the collector's depletion budget to zero, and prints that budget.
It runs no workload of its own, and no allocation in corevm starts a
collection by itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prev, had := os.LookupEnv("RECYCLE_TORTURE")
		os.Setenv("RECYCLE_TORTURE", "1")
		defer func() {
			if had {
				os.Setenv("RECYCLE_TORTURE", prev)
			} else {
				os.Unsetenv("RECYCLE_TORTURE")
			}
		}()

		rt, err := startRuntime()
		if err != nil {
			return err
		}
		defer rt.Shutdown()

		fmt.Printf("depletion budget: %d\n", rt.Snapshot().Depletion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tortureCmd)
}
