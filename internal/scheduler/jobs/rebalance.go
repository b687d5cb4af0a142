package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/rebalance"
	"github.com/wonny/rebalancer/pkg/logger"
)

// Rebalancer runs one live rebalance
type Rebalancer interface {
	Rebalance(ctx context.Context, target contracts.TargetAllocation) (*rebalance.Outcome, error)
}

// AllocationLoader returns the current target allocation
type AllocationLoader func() (contracts.TargetAllocation, error)

// RebalanceJob rebalances the live account on the allocation's cadence
type RebalanceJob struct {
	rebalancer Rebalancer
	load       AllocationLoader
	frequency  contracts.Frequency
	logger     *logger.Logger
}

// NewRebalanceJob creates a new rebalance job
func NewRebalanceJob(rebalancer Rebalancer, load AllocationLoader, frequency contracts.Frequency, log *logger.Logger) *RebalanceJob {
	return &RebalanceJob{
		rebalancer: rebalancer,
		load:       load,
		frequency:  frequency,
		logger:     log.Module("rebalance_job"),
	}
}

// Name returns the job name
func (j *RebalanceJob) Name() string {
	return "rebalance"
}

// Schedule returns the cron schedule for the configured frequency
func (j *RebalanceJob) Schedule() string {
	return j.frequency.CronSpec()
}

// Retryable is false: a partially executed batch must not be resubmitted
func (j *RebalanceJob) Retryable() bool {
	return false
}

// Run reloads the allocation and rebalances against it
func (j *RebalanceJob) Run(ctx context.Context) error {
	target, err := j.load()
	if err != nil {
		return fmt.Errorf("load allocation: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"holdings":  len(target.Holdings),
		"frequency": string(j.frequency),
	}).Info("Starting scheduled rebalance")

	outcome, err := j.rebalancer.Rebalance(ctx, target)
	if err != nil {
		return fmt.Errorf("rebalance: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"orders":    len(outcome.Orders),
		"submitted": len(outcome.Submitted),
		"dry_run":   outcome.DryRun,
	}).Info("Scheduled rebalance completed")

	return nil
}
