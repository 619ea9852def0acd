// Command corevmctl drives the memory core for diagnostics and
// manual exercise outside of an embedding evaluator: stats snapshots,
// forced recycles, and sweeplist dry runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "corevmctl",
	Short: "Diagnostics CLI for the corevm memory core",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML runtime config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "corevmctl:", err)
		os.Exit(1)
	}
}
