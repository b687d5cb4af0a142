package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/config"
	"github.com/wonny/rebalancer/pkg/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/eod/SPY.US", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_token"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-01-31", r.URL.Query().Get("to"))
		_, _ = w.Write([]byte(`[
			{"date":"2024-01-02","open":470.1,"close":472.65,"adjusted_close":468.2,"volume":1},
			{"date":"2024-01-03","open":470.1,"close":468.79,"adjusted_close":464.4,"volume":1},
			{"date":"2024-01-08","open":470.1,"close":474.60,"adjusted_close":470.1,"volume":1}
		]`))
	})
	mux.HandleFunc("/api/div/SPY.US", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"date":"2024-01-03","value":1.9,"currency":"USD"},
			{"date":"2024-01-06","value":"0.1","currency":"USD"},
			{"date":"2024-02-15","value":2.0,"currency":"USD"}
		]`))
	})
	mux.HandleFunc("/api/eod/BAD.US", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"date":"02/01/2024","close":1}]`))
	})
	mux.HandleFunc("/api/div/BAD.US", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/api/real-time/AAPL.US", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": "AAPL.US", "timestamp": 1700000000, "close": 189.37})
	})
	mux.HandleFunc("/api/real-time/HALT.US", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"HALT.US","timestamp":"NA","close":"NA"}`))
	})
	mux.HandleFunc("/api/eod/DENIED.US", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	srv := newTestServer(t)
	return NewClient(config.DataAPIConfig{URL: srv.URL + "/api/", Key: "secret", RatePerSecond: 100}, logger.Nop())
}

func day(s string) time.Time {
	d, _ := contracts.ParseDate(s)
	return d
}

func TestSeries_MergesDividends(t *testing.T) {
	c := newTestClient(t)

	series, err := c.Series(context.Background(), "spy", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, "spy", series.Ticker)
	require.Equal(t, 3, series.Len())
	assert.True(t, series.Bars[0].Close.Equal(decimal.RequireFromString("472.65")))
	assert.True(t, series.Bars[1].Dividend.Equal(decimal.RequireFromString("1.9")))
	// weekend ex-date moves to the next bar
	assert.Equal(t, day("2024-01-08"), series.Bars[2].Date)
	assert.True(t, series.Bars[2].Dividend.Equal(decimal.RequireFromString("0.1")))
	// after the last bar, dropped
	assert.True(t, series.DividendsBetween(day("2023-12-31"), day("2024-12-31")).Equal(decimal.RequireFromString("2.0")))
}

func TestSeries_Errors(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Series(context.Background(), "BAD", day("2024-01-01"), day("2024-01-31"))
	var invalid *contracts.InvalidSeriesError
	assert.True(t, errors.As(err, &invalid))

	_, err = c.Series(context.Background(), "DENIED", day("2024-01-01"), day("2024-01-31"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "403"))
}

func TestLatestPrice(t *testing.T) {
	c := newTestClient(t)

	price, err := c.LatestPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("189.37")))

	_, err = c.LatestPrice(context.Background(), "HALT")
	var missing *contracts.MissingPriceError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "HALT", missing.Ticker)
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "AAPL.US", Symbol("aapl"))
	assert.Equal(t, "VOD.LSE", Symbol("VOD.LSE"))
	assert.Equal(t, "SPY.US", Symbol(" SPY.US "))
}
