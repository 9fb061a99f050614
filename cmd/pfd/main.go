package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagListen   string
	flagLogLevel string
	flagBackend  string
)

var rootCmd = &cobra.Command{
	Use:   "pfd",
	Short: "Physical function supervisor daemon",
	Long: `pfd supervises the virtual functions of an SR-IOV physical function:
it provisions VF capacity, answers the VF mailbox protocol, arbitrates the
shared filter tables and applies administrative policy.

The daemon exposes a JSON HTTP API (see pfctl) and a Prometheus scrape
endpoint. With the default simulator backend it runs entirely in memory,
which is useful for development and CI; the host backend drives the PF
through sysfs and ethtool.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "pfd.yaml", "Path to configuration file")
	rootCmd.Flags().StringVar(&flagListen, "listen", "", "HTTP API listen address (overrides config)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (overrides config)")
	rootCmd.Flags().StringVar(&flagBackend, "backend", "", "Device backend: sim or host (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
