package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mfeller/plcmock/internal/config"
	"github.com/mfeller/plcmock/internal/errors"
)

func newValidateConfigCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate an emulator config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" {
				cfgPath = "plcmock.yaml"
			}
			if _, err := config.LoadConfig(cfgPath); err != nil {
				return errors.WrapConfigError(err, cfgPath)
			}
			fmt.Fprintf(os.Stdout, "Config OK: %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Config file path")
	return cmd
}

func newPrintDefaultCmd() *cobra.Command {
	var protocol string
	cmd := &cobra.Command{
		Use:   "print-default-config",
		Short: "Print a default emulator config",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.MarshalDefault(protocol)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", config.ProtocolADS, "Protocol personality: ads|fins")
	return cmd
}
