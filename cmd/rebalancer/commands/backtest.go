package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalancer/internal/backtest"
	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/report"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate the allocation over history",
	Long: `Replays the target allocation over daily price history with
dividends, rebalancing on its cadence, and compares it with benchmarks.

Example:
  go run ./cmd/rebalancer backtest run --from 2020-01-01
  go run ./cmd/rebalancer backtest run --from 2020-01-01 --frequency quarterly --chart out.png`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Runs a backtest of the portfolio definition.

Flags:
  --from        start date (YYYY-MM-DD, default: the definition's First Date)
  --to          end date (YYYY-MM-DD, default: today)
  --frequency   monthly, quarterly, biannually or annually (default: the definition's Rebalance)
  --benchmarks  comma separated tickers (default: BACKTEST_BENCHMARKS)
  --step        sampling interval in days (default: BACKTEST_STEP_DAYS)
  --notional    starting value (default: BACKTEST_NOTIONAL)
  --source      api or db (history from the data API or from synced bars)
  --chart       write a PNG chart of cumulative returns
  --csv         write the return records as CSV`,
		RunE: runBacktest,
	}

	backtestFrom       string
	backtestTo         string
	backtestFrequency  string
	backtestBenchmarks string
	backtestStep       int
	backtestNotional   float64
	backtestSource     string
	backtestChart      string
	backtestCSV        string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD, default: today)")
	backtestRunCmd.Flags().StringVar(&backtestFrequency, "frequency", "", "rebalance frequency")
	backtestRunCmd.Flags().StringVar(&backtestBenchmarks, "benchmarks", "", "comma separated benchmark tickers")
	backtestRunCmd.Flags().IntVar(&backtestStep, "step", 0, "sampling interval in days")
	backtestRunCmd.Flags().Float64Var(&backtestNotional, "notional", 0, "starting portfolio value")
	backtestRunCmd.Flags().StringVar(&backtestSource, "source", sourceAPI, "history source (api|db)")
	backtestRunCmd.Flags().StringVar(&backtestChart, "chart", "", "PNG output path")
	backtestRunCmd.Flags().StringVar(&backtestCSV, "csv", "", "CSV output path")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	target, err := d.loadAllocation()
	if err != nil {
		return err
	}

	cfg, err := backtestConfig(target, d.cfg.Backtest.Benchmarks, d.cfg.Backtest.Notional, d.cfg.Backtest.StepDays)
	if err != nil {
		return err
	}

	runner, err := d.backtestRunner(backtestSource)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	printBacktestSummary(result)

	if backtestCSV != "" {
		if err := writeCSVFile(backtestCSV, result.Records); err != nil {
			return err
		}
		fmt.Printf("Records written to %s\n", backtestCSV)
	}

	if backtestChart != "" {
		png, err := report.RenderChart(result.Records, report.ChartOptions{
			Title:    "Cumulative return",
			Subtitle: fmt.Sprintf("%s rebalance", result.Frequency),
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(backtestChart, png, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		fmt.Printf("Chart written to %s\n", backtestChart)
	}

	return nil
}

// backtestConfig merges command flags over configuration defaults
func backtestConfig(target contracts.TargetAllocation, benchmarks []string, notional float64, step int) (backtest.Config, error) {
	cfg := backtest.Config{
		Allocation:      target,
		Benchmarks:      benchmarks,
		InitialNotional: notional,
		StepDays:        step,
	}

	if backtestFrequency != "" {
		cfg.Frequency = contracts.ParseFrequency(backtestFrequency)
	}
	if backtestBenchmarks != "" {
		cfg.Benchmarks = make([]string, 0)
		for _, b := range strings.Split(backtestBenchmarks, ",") {
			if b = strings.ToUpper(strings.TrimSpace(b)); b != "" {
				cfg.Benchmarks = append(cfg.Benchmarks, b)
			}
		}
	}
	if backtestStep > 0 {
		cfg.StepDays = backtestStep
	}
	if backtestNotional > 0 {
		cfg.InitialNotional = backtestNotional
	}

	var err error
	if backtestFrom != "" {
		if cfg.StartDate, err = contracts.ParseDate(backtestFrom); err != nil {
			return cfg, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if backtestTo != "" {
		if cfg.EndDate, err = contracts.ParseDate(backtestTo); err != nil {
			return cfg, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return cfg, nil
}

func writeCSVFile(path string, records []contracts.ReturnRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := report.WriteCSV(f, records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printBacktestSummary(r *backtest.Result) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("  Backtest")
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Period       : %s ~ %s\n", r.StartDate.Format(contracts.DateLayout), r.EndDate.Format(contracts.DateLayout))
	fmt.Printf("  Rebalance    : %s (%d events)\n", r.Frequency, len(r.Rebalances))
	fmt.Printf("  Step         : %d days (%d records)\n", r.StepDays, len(r.Records))
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Initial      : %.2f\n", r.InitialValue)
	fmt.Printf("  Final        : %.2f\n", r.FinalValue)
	fmt.Printf("  Total return : %.2f%%\n", r.TotalReturn*100)
	fmt.Printf("  CAGR         : %.2f%%\n", r.CAGR*100)
	fmt.Printf("  Volatility   : %.2f%%\n", r.Volatility*100)
	fmt.Printf("  Max drawdown : %.2f%%\n", r.MaxDrawdown*100)

	if names := contracts.BenchmarkNames(r.Records); len(names) > 0 {
		fmt.Println("───────────────────────────────────────────────────────────")
		for _, name := range names {
			fmt.Printf("  %-12s : %.2f%%\n", name, r.BenchmarkReturns[name]*100)
		}
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Completed in %s\n", r.Duration.Round(time.Millisecond))
}
