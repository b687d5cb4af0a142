package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/marketdata"
)

// pricesCmd represents the prices command
var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Manage stored price history",
	Long: `Copies daily closes and dividends from the data API into the
market.daily_bars table, so backtests can run with --source db.

Example:
  go run ./cmd/rebalancer prices sync --from 2015-01-01
  go run ./cmd/rebalancer prices sync --tickers SPY,QQQ,VTI`,
}

var (
	pricesSyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Sync daily bars into the database",
		RunE:  runPricesSync,
	}

	pricesTickers string
	pricesFrom    string
	pricesTo      string
	pricesWorkers int
)

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesSyncCmd)

	pricesSyncCmd.Flags().StringVar(&pricesTickers, "tickers", "", "comma separated tickers (default: portfolio and benchmarks)")
	pricesSyncCmd.Flags().StringVar(&pricesFrom, "from", "", "start date (YYYY-MM-DD, default: one year ago)")
	pricesSyncCmd.Flags().StringVar(&pricesTo, "to", "", "end date (YYYY-MM-DD, default: today)")
	pricesSyncCmd.Flags().IntVar(&pricesWorkers, "workers", marketdata.DefaultWorkers, "concurrent fetches")
}

func runPricesSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	to := contracts.Date(time.Now())
	if pricesTo != "" {
		if to, err = contracts.ParseDate(pricesTo); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}
	from := to.AddDate(-1, 0, 0)
	if pricesFrom != "" {
		if from, err = contracts.ParseDate(pricesFrom); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}

	tickers, err := trackedTickers(d)
	if err != nil {
		return err
	}

	collector, err := d.collector(pricesWorkers)
	if err != nil {
		return err
	}

	start := time.Now()
	results, err := collector.Sync(ctx, tickers, from, to)
	if err != nil {
		return err
	}

	failed := 0
	fmt.Println()
	for _, r := range results {
		if r.Error != nil {
			failed++
			fmt.Printf("  ✗ %-8s %v\n", r.Ticker, r.Error)
			continue
		}
		fmt.Printf("  ✓ %-8s %d bars from %s\n", r.Ticker, r.BarCount, r.From.Format(contracts.DateLayout))
	}
	fmt.Printf("\nSynced %d/%d tickers in %.2fs\n", len(results)-failed, len(results), time.Since(start).Seconds())

	if failed > 0 {
		return fmt.Errorf("%d tickers failed", failed)
	}
	return nil
}

// trackedTickers returns --tickers, or the portfolio tickers plus benchmarks
func trackedTickers(d *deps) ([]string, error) {
	if pricesTickers != "" {
		out := make([]string, 0)
		for _, t := range strings.Split(pricesTickers, ",") {
			if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
				out = append(out, t)
			}
		}
		return out, nil
	}

	target, err := d.loadAllocation()
	if err != nil {
		return nil, err
	}
	return append(target.Tickers(), d.cfg.Backtest.Benchmarks...), nil
}
