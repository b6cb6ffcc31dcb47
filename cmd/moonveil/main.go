package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	FlagConfigFile = "config-file"
	FlagOnce       = "once"
	FlagCycleHours = "cycle-hours"
	FlagMetrics    = "metrics-addr"
	FlagNoForce    = "no-force-update"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "moonveil",
		Short: "Moonveil testnet faucet, transfer and bridge automation",
		Long: `Runs the faucet claim, self transfer and bridge deposits for every
account in the private key file, one account at a time.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		encodeBridgeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
