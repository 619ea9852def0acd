package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sweeplistCmd = &cobra.Command{
	Use:   "sweeplist",
	Short: "Report which stubs the next collection would reclaim, without freeing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := startRuntime()
		if err != nil {
			return err
		}
		defer rt.Shutdown()

		entries, err := rt.Sweeplist()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweeplistCmd)
}
