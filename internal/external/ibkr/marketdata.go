package ibkr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalancer/internal/contracts"
)

// LatestPrice returns the last price from a market data snapshot. The first
// snapshot for a contract often comes back empty while the gateway subscribes,
// so it is polled a few times.
func (c *Client) LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	conid, err := c.Conid(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}

	query := url.Values{}
	query.Set("conids", strconv.FormatInt(conid, 10))
	query.Set("fields", fieldLast)
	endpoint := c.url("/iserver/marketdata/snapshot?" + query.Encode())

	for attempt := 1; attempt <= c.snapshotAttempts; attempt++ {
		var entries []snapshotEntry
		if err := c.httpClient.GetJSON(ctx, endpoint, &entries); err != nil {
			return decimal.Zero, fmt.Errorf("snapshot %s: %w", ticker, err)
		}

		for _, e := range entries {
			if raw, ok := e.last(); ok {
				price, err := decimal.NewFromString(raw)
				if err != nil || !price.IsPositive() {
					return decimal.Zero, &contracts.MissingPriceError{Ticker: ticker}
				}
				return price, nil
			}
		}

		if attempt < c.snapshotAttempts {
			select {
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			case <-time.After(c.snapshotDelay):
			}
		}
	}

	return decimal.Zero, &contracts.MissingPriceError{Ticker: ticker}
}

// Conid resolves a ticker to its IBKR contract id
func (c *Client) Conid(ctx context.Context, ticker string) (int64, error) {
	sym := symbol(ticker)

	c.conidsMu.RLock()
	id, ok := c.conids[sym]
	c.conidsMu.RUnlock()
	if ok {
		return id, nil
	}

	var results []secdefResult
	endpoint := c.url("/iserver/secdef/search?symbol=" + url.QueryEscape(sym))
	if err := c.httpClient.GetJSON(ctx, endpoint, &results); err != nil {
		return 0, fmt.Errorf("secdef search %s: %w", sym, err)
	}

	for _, r := range results {
		if r.Conid != 0 && (r.Symbol == "" || r.Symbol == sym) {
			c.rememberConid(sym, int64(r.Conid))
			return int64(r.Conid), nil
		}
	}

	return 0, &contracts.MissingPriceError{Ticker: ticker}
}

func (c *Client) rememberConid(ticker string, conid int64) {
	c.conidsMu.Lock()
	c.conids[symbol(ticker)] = conid
	c.conidsMu.Unlock()
}
