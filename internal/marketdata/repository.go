package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalancer/internal/contracts"
)

// Repository stores daily bars in market.daily_bars. It is also a Source, so
// backtests can run from synced data without touching the API.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new market data repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Series implements Source
func (r *Repository) Series(ctx context.Context, ticker string, from, to time.Time) (contracts.PriceSeries, error) {
	query := `
		SELECT trade_date, close, dividend
		FROM market.daily_bars
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	series := contracts.PriceSeries{Ticker: ticker, Bars: make([]contracts.Bar, 0)}
	for rows.Next() {
		var bar contracts.Bar
		if err := rows.Scan(&bar.Date, &bar.Close, &bar.Dividend); err != nil {
			return contracts.PriceSeries{}, fmt.Errorf("scan bar: %w", err)
		}
		bar.Date = contracts.Date(bar.Date)
		series.Bars = append(series.Bars, bar)
	}

	if err := rows.Err(); err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("rows error: %w", err)
	}

	return series, nil
}

// SaveSeries upserts every bar of the series (bulk upsert)
func (r *Repository) SaveSeries(ctx context.Context, series contracts.PriceSeries) error {
	if len(series.Bars) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO market.daily_bars (ticker, trade_date, close, dividend, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			close = EXCLUDED.close,
			dividend = EXCLUDED.dividend,
			updated_at = NOW()`

	for _, b := range series.Bars {
		batch.Queue(query, series.Ticker, b.Date, b.Close, b.Dividend)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range series.Bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert bars for %s: %w", series.Ticker, err)
		}
	}

	return nil
}

// LatestDate returns the most recent stored bar date for ticker
func (r *Repository) LatestDate(ctx context.Context, ticker string) (time.Time, bool, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(trade_date) FROM market.daily_bars WHERE ticker = $1`, ticker,
	).Scan(&latest)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && latest == nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest date for %s: %w", ticker, err)
	}
	return contracts.Date(*latest), true, nil
}
