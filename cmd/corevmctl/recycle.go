package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recycleDouble bool

var recycleCmd = &cobra.Command{
	Use:   "recycle",
	Short: "Force a collection pass and report how many objects were reclaimed",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := startRuntime()
		if err != nil {
			return err
		}
		defer rt.Shutdown()

		if recycleDouble {
			swept, err := rt.RecycleDouble()
			if err != nil {
				return err
			}
			fmt.Printf("swept %d (second pass reclaimed 0, as expected)\n", swept)
			return nil
		}

		swept, err := rt.Recycle()
		if err != nil {
			return err
		}
		fmt.Printf("swept %d\n", swept)
		return nil
	},
}

func init() {
	recycleCmd.Flags().BoolVar(&recycleDouble, "double", false, "run two back-to-back passes and assert the second reclaims nothing")
	rootCmd.AddCommand(recycleCmd)
}
