package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "plcmock",
		Short: "Mock PLC endpoints for honeypots and client testing",
		Long: `PLCMOCK emulates industrial controller endpoints over TCP so that
clients, scanners and DPI tooling have a realistic target to talk to.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateConfigCmd())
	rootCmd.AddCommand(newPrintDefaultCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
