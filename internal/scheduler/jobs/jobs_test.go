package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/marketdata"
	"github.com/wonny/rebalancer/internal/rebalance"
	"github.com/wonny/rebalancer/pkg/logger"
)

type fakeRebalancer struct {
	calls  int
	target contracts.TargetAllocation
	err    error
}

func (f *fakeRebalancer) Rebalance(ctx context.Context, target contracts.TargetAllocation) (*rebalance.Outcome, error) {
	f.calls++
	f.target = target
	if f.err != nil {
		return nil, f.err
	}
	return &rebalance.Outcome{DryRun: true}, nil
}

type fakeSyncer struct {
	from, to time.Time
	results  []marketdata.SyncResult
}

func (f *fakeSyncer) Sync(ctx context.Context, tickers []string, from, to time.Time) ([]marketdata.SyncResult, error) {
	f.from, f.to = from, to
	return f.results, nil
}

func TestRebalanceJob(t *testing.T) {
	alloc := contracts.NewTargetAllocation(contracts.Holding{Ticker: "AAPL", Weight: decimal.RequireFromString("0.5")})
	r := &fakeRebalancer{}
	job := NewRebalanceJob(r, func() (contracts.TargetAllocation, error) { return alloc, nil }, contracts.FrequencyQuarterly, logger.Nop())

	assert.Equal(t, "rebalance", job.Name())
	assert.Equal(t, contracts.FrequencyQuarterly.CronSpec(), job.Schedule())
	assert.False(t, job.Retryable())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, []string{"AAPL"}, r.target.Tickers())
}

func TestRebalanceJob_Errors(t *testing.T) {
	r := &fakeRebalancer{}
	job := NewRebalanceJob(r, func() (contracts.TargetAllocation, error) {
		return contracts.TargetAllocation{}, errors.New("file missing")
	}, contracts.FrequencyMonthly, logger.Nop())

	assert.ErrorContains(t, job.Run(context.Background()), "load allocation")
	assert.Zero(t, r.calls)

	r.err = errors.New("broker down")
	job = NewRebalanceJob(r, func() (contracts.TargetAllocation, error) {
		return contracts.NewTargetAllocation(), nil
	}, contracts.FrequencyMonthly, logger.Nop())
	assert.ErrorContains(t, job.Run(context.Background()), "broker down")
}

func TestPriceSyncJob(t *testing.T) {
	s := &fakeSyncer{results: []marketdata.SyncResult{{Ticker: "SPY"}, {Ticker: "QQQ"}}}
	job := NewPriceSyncJob(s, []string{"SPY", "QQQ"}, 0, logger.Nop())
	job.now = func() time.Time { return time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, time.Date(2024, 3, 3, 23, 0, 0, 0, time.UTC), s.from)
	assert.Equal(t, "price_sync", job.Name())

	s.results = append(s.results, marketdata.SyncResult{Ticker: "BAD", Error: errors.New("404")})
	assert.ErrorContains(t, job.Run(context.Background()), "BAD")
}
