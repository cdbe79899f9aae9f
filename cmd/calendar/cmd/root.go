package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the build version, overridden at link time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Calendar session service",
	Long: `Backing service for the calendar app: accounts, the biometric
re-entry session state machine, and per-day event storage, served over
a local HTTP API the device shell consumes.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
