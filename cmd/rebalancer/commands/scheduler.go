package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/scheduler"
	"github.com/wonny/rebalancer/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run recurring jobs",
	Long: `Runs the rebalance on the portfolio's cadence and keeps stored
price history fresh.

Subcommands:
  start  - start the scheduler daemon
  list   - show registered jobs and their next run

Example:
  go run ./cmd/rebalancer scheduler start
  go run ./cmd/rebalancer scheduler list`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler and registers:
- rebalance: first day of each period at 15:00 (cadence from the definition's Rebalance column)
- price_sync: weekdays at 22:30 UTC (only when DATABASE_URL and DATA_API_KEY are set)

Live orders are only submitted when REBALANCE_DRY_RUN=false.
Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
}

func initScheduler(d *deps) (*scheduler.Scheduler, error) {
	target, err := d.loadAllocation()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(d.log)

	svc := d.rebalanceService(d.cfg.Rebalance.DryRun)
	rebalanceJob := jobs.NewRebalanceJob(svc, d.loadAllocation, contracts.ParseFrequency(target.Rebalance), d.log)
	if err := sched.AddJob(rebalanceJob); err != nil {
		return nil, err
	}

	if collector, err := d.collector(0); err == nil {
		tickers := append(target.Tickers(), d.cfg.Backtest.Benchmarks...)
		if err := sched.AddJob(jobs.NewPriceSyncJob(collector, tickers, 0, d.log)); err != nil {
			return nil, err
		}
	} else {
		d.log.WithError(err).Warn("Price sync job not registered")
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rebalancer Scheduler ===")

	ctx := context.Background()
	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	printJobs(sched)
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()

	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.GetAllJobs() {
		next, err := sched.NextRun(name)
		nextStr := "-"
		if err == nil && !next.IsZero() {
			nextStr = next.Format(time.RFC3339)
		}
		fmt.Printf("  - %-12s %-28s next: %s\n", name, stats[name].Schedule, nextStr)
	}
}
