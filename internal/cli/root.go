// Package cli implements the feesplitd command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "feesplitd",
	Short: "feesplitd - DEX fee collection and distribution daemon",
	Long: `feesplitd collects trading fees and splits every fee event into
burn, staker-reward, trader-rebate and platform shares at the basis
points the governance oracle publishes per epoch. It keeps exactly-once
payout accounting for claims, gates burn releases behind price sanity
checks, and serves a JSON-RPC and websocket API.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}
