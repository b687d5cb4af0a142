package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/rebalance"
)

// rebalanceCmd represents the rebalance command
var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Bring the live account to target weights",
	Long: `Reads the portfolio definition, snapshots the broker account and
prices, and computes the share deltas that restore the target weights.

Subcommands:
  plan     - print the trades without submitting anything
  execute  - submit the trades (sells first, stops at the first failure)

Example:
  go run ./cmd/rebalancer rebalance plan
  go run ./cmd/rebalancer rebalance execute --yes`,
}

var (
	rebalancePlanCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print the trade plan",
		RunE:  runRebalancePlan,
	}

	rebalanceExecuteCmd = &cobra.Command{
		Use:   "execute",
		Short: "Submit the trade plan to the broker",
		Long: `Submits the trade plan. While REBALANCE_DRY_RUN is true (the default)
orders are only sent with --yes.`,
		RunE: runRebalanceExecute,
	}

	rebalanceConfirm bool
	rebalanceTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(rebalanceCmd)
	rebalanceCmd.AddCommand(rebalancePlanCmd)
	rebalanceCmd.AddCommand(rebalanceExecuteCmd)

	rebalanceCmd.PersistentFlags().DurationVar(&rebalanceTimeout, "timeout", 2*time.Minute, "overall timeout")
	rebalanceExecuteCmd.Flags().BoolVar(&rebalanceConfirm, "yes", false, "submit orders (overrides REBALANCE_DRY_RUN)")
}

func runRebalancePlan(cmd *cobra.Command, args []string) error {
	return runRebalance(cmd.Context(), true)
}

func runRebalanceExecute(cmd *cobra.Command, args []string) error {
	return runRebalance(cmd.Context(), false)
}

func runRebalance(parent context.Context, planOnly bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, rebalanceTimeout)
	defer cancel()

	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	target, err := d.loadAllocation()
	if err != nil {
		return err
	}

	dryRun := planOnly || (d.cfg.Rebalance.DryRun && !rebalanceConfirm)
	svc := d.rebalanceService(dryRun)
	outcome, err := svc.Rebalance(ctx, target)
	if outcome != nil {
		printOutcome(outcome)
	}

	var execErr *contracts.ExecutionError
	if errors.As(err, &execErr) {
		fmt.Printf("\nExecution stopped at %s %s %s: %v\n",
			execErr.Order.Side, execErr.Order.Quantity, execErr.Order.Ticker, execErr.Err)
		fmt.Printf("%d orders were submitted before the failure\n", len(execErr.Submitted))
	}
	return err
}

func printOutcome(o *rebalance.Outcome) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	if o.DryRun {
		fmt.Println("  Rebalance plan (dry run)")
	} else {
		fmt.Println("  Rebalance")
	}
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Portfolio value : %s\n", o.Plan.PortfolioValue.StringFixed(2))
	fmt.Printf("  Cash            : %s\n", o.Account.Cash.StringFixed(2))
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  %-8s %12s %12s %12s %12s\n", "Ticker", "Current", "Desired", "Delta", "Price")
	for _, delta := range o.Plan.Deltas {
		mark := ""
		if delta.Liquidation {
			mark = " (exit)"
		}
		fmt.Printf("  %-8s %12s %12s %12s %12s%s\n",
			delta.Ticker,
			delta.Current.String(),
			delta.Desired.String(),
			delta.Quantity.String(),
			delta.Price.StringFixed(2),
			mark)
	}
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Orders    : %d\n", len(o.Orders))
	if !o.DryRun {
		fmt.Printf("  Submitted : %d\n", len(o.Submitted))
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
}
