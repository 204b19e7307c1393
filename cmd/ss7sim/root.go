package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ss7sim",
	Short: "Minimal wiring example for the ss7 router/management core",
	Long: `ss7sim attaches a loopback network and a toy user part to an
ss7.Router, restarts it, and exercises one transmit/receive round trip.`,
}

// Execute runs the root command. Called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
