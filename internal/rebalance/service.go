package rebalance

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rebalancer/internal/allocation"
	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/execution"
	"github.com/wonny/rebalancer/internal/marketdata"
	"github.com/wonny/rebalancer/pkg/logger"
)

// Config holds live rebalancing policy
type Config struct {
	DryRun       bool
	QuoteWorkers int
}

// Service runs one rebalance: snapshot the account, price the targets,
// diff against the allocation and submit the resulting orders.
type Service struct {
	broker   execution.Broker
	quoter   marketdata.Quoter
	differ   *allocation.Differ
	planner  *execution.Planner
	executor *execution.Executor
	config   Config
	logger   *logger.Logger
}

// Outcome is the result of a rebalance run
type Outcome struct {
	Account   *contracts.Account   `json:"account"`
	Plan      *contracts.TradePlan `json:"plan"`
	Orders    []contracts.Order    `json:"orders"`
	Submitted []contracts.Order    `json:"submitted"`
	DryRun    bool                 `json:"dry_run"`
	Duration  time.Duration        `json:"duration"`
}

// NewService creates a rebalance service. A nil quoter falls back to the
// broker's own quotes.
func NewService(
	broker execution.Broker,
	quoter marketdata.Quoter,
	differ *allocation.Differ,
	planner *execution.Planner,
	executor *execution.Executor,
	config Config,
	log *logger.Logger,
) *Service {
	if quoter == nil {
		quoter = broker
	}
	return &Service{
		broker:   broker,
		quoter:   quoter,
		differ:   differ,
		planner:  planner,
		executor: executor,
		config:   config,
		logger:   log.Module("rebalance"),
	}
}

// DryRun reports whether Rebalance stops after planning
func (s *Service) DryRun() bool {
	return s.config.DryRun
}

// Plan snapshots the account and prices and returns the trade plan. Positions
// outside the target are priced from their own market value, so only target
// tickers are quoted.
func (s *Service) Plan(ctx context.Context, target contracts.TargetAllocation) (*contracts.TradePlan, *contracts.Account, error) {
	if err := target.Validate(); err != nil {
		return nil, nil, err
	}

	account, err := s.broker.GetAccount(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get account: %w", err)
	}

	prices, err := marketdata.QuoteSnapshot(ctx, s.quoter, target.Tickers(), s.config.QuoteWorkers)
	if err != nil {
		return nil, nil, fmt.Errorf("price snapshot: %w", err)
	}

	plan, err := s.differ.Compute(target, account.PortfolioValue(), account.Positions, prices)
	if err != nil {
		return nil, nil, err
	}

	return plan, account, nil
}

// Execute turns the plan into orders and submits them
func (s *Service) Execute(ctx context.Context, plan *contracts.TradePlan) ([]contracts.Order, []contracts.Order, error) {
	orders := s.planner.Plan(plan)
	if len(orders) == 0 {
		s.logger.Info("Portfolio already at target, nothing to submit")
		return orders, nil, nil
	}

	submitted, err := s.executor.Execute(ctx, orders)
	return orders, submitted, err
}

// Rebalance plans and, unless in dry-run mode, executes
func (s *Service) Rebalance(ctx context.Context, target contracts.TargetAllocation) (*Outcome, error) {
	start := time.Now()

	plan, account, err := s.Plan(ctx, target)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Account: account,
		Plan:    plan,
		DryRun:  s.config.DryRun,
	}

	if s.config.DryRun {
		outcome.Orders = s.planner.Plan(plan)
		outcome.Duration = time.Since(start)
		s.logger.WithField("orders", len(outcome.Orders)).Info("Dry run, orders not submitted")
		return outcome, nil
	}

	outcome.Orders, outcome.Submitted, err = s.Execute(ctx, plan)
	outcome.Duration = time.Since(start)
	if err != nil {
		return outcome, err
	}

	s.logger.WithFields(map[string]interface{}{
		"portfolio_value": plan.PortfolioValue.StringFixed(2),
		"orders":          len(outcome.Submitted),
		"duration":        outcome.Duration,
	}).Info("Rebalance completed")

	return outcome, nil
}
