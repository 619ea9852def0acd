package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a point-in-time snapshot of heap, pool, and root accounting",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := startRuntime()
		if err != nil {
			return err
		}
		defer rt.Shutdown()

		out, err := rt.Snapshot().MarshalJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
