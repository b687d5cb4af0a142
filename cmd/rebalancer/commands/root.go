package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	portfolioFile string
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rebalancer",
	Short: "Target-weight portfolio rebalancer and backtester",
	Long: `Rebalancer keeps a brokerage account at fixed target weights and
simulates the same policy over history.

The target allocation is read from a spreadsheet, CSV or YAML file with
Ticker and Weight columns (plus optional Rebalance and First Date).

Usage:
  go run ./cmd/rebalancer [command]

Examples:
  go run ./cmd/rebalancer rebalance plan
  go run ./cmd/rebalancer rebalance execute --yes
  go run ./cmd/rebalancer backtest run --from 2020-01-01 --chart returns.png
  go run ./cmd/rebalancer prices sync --from 2015-01-01
  go run ./cmd/rebalancer scheduler start
  go run ./cmd/rebalancer api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portfolioFile, "portfolio", "p", "", "portfolio definition file (default: PORTFOLIO_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
