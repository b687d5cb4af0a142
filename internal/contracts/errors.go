package contracts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvalidAllocationError reports a target allocation (or portfolio value) the
// differ and simulator refuse to work with.
type InvalidAllocationError struct {
	Reason string
	Total  decimal.Decimal
}

func (e *InvalidAllocationError) Error() string {
	if e.Total.IsZero() {
		return fmt.Sprintf("invalid allocation: %s", e.Reason)
	}
	return fmt.Sprintf("invalid allocation: %s (total weight %s)", e.Reason, e.Total.String())
}

// MissingPriceError reports a ticker the price source could not resolve
type MissingPriceError struct {
	Ticker string
	Date   time.Time // zero for live quotes
}

func (e *MissingPriceError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("missing price for %s", e.Ticker)
	}
	return fmt.Sprintf("missing price for %s on %s", e.Ticker, e.Date.Format(DateLayout))
}

// InsufficientHistoryError reports a series that starts after the requested
// start date, or has no data at all.
type InsufficientHistoryError struct {
	Ticker    string
	FirstDate time.Time // zero when the series is empty
	Start     time.Time
}

func (e *InsufficientHistoryError) Error() string {
	if e.FirstDate.IsZero() {
		return fmt.Sprintf("insufficient history for %s: no data", e.Ticker)
	}
	return fmt.Sprintf("insufficient history for %s: first date %s is after start %s",
		e.Ticker, e.FirstDate.Format(DateLayout), e.Start.Format(DateLayout))
}

// InvalidSeriesError reports a malformed price series
type InvalidSeriesError struct {
	Ticker string
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	return fmt.Sprintf("invalid series for %s: %s", e.Ticker, e.Reason)
}

// ExecutionError is the "execution failed" signal from the order sink.
// Submitted lists the orders accepted before the failing one.
type ExecutionError struct {
	Order     Order
	Submitted []Order
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at %s %s %s (%d orders submitted before): %v",
		e.Order.Side, e.Order.Quantity.String(), e.Order.Ticker, len(e.Submitted), e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
