package ibkr

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalancer/internal/contracts"
)

const positionsPageSize = 100

// GetAccount returns base-currency cash and all stock positions
func (c *Client) GetAccount(ctx context.Context) (*contracts.Account, error) {
	positions, err := c.positions(ctx)
	if err != nil {
		return nil, err
	}

	cash, err := c.cash(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"account":   c.cfg.AccountID,
		"positions": len(positions),
		"cash":      cash.StringFixed(2),
	}).Info("Account snapshot loaded")

	return &contracts.Account{Cash: cash, Positions: positions}, nil
}

func (c *Client) positions(ctx context.Context) (map[string]contracts.Position, error) {
	out := make(map[string]contracts.Position)

	for page := 0; ; page++ {
		var rows []positionResponse
		path := c.accountPath("/portfolio/%s/positions/") + fmt.Sprint(page)
		if err := c.httpClient.GetJSON(ctx, path, &rows); err != nil {
			return nil, fmt.Errorf("positions page %d: %w", page, err)
		}

		for _, row := range rows {
			if row.Position == 0 || (row.AssetClass != "" && row.AssetClass != "STK") {
				continue
			}
			ticker := row.symbol()
			if ticker == "" {
				continue
			}
			if row.Conid != 0 {
				c.rememberConid(ticker, int64(row.Conid))
			}
			out[ticker] = contracts.Position{
				Ticker:      ticker,
				Quantity:    decimal.NewFromFloat(row.Position),
				MarketValue: decimal.NewFromFloat(row.MktValue),
			}
		}

		if len(rows) < positionsPageSize {
			return out, nil
		}
	}
}

func (c *Client) cash(ctx context.Context) (decimal.Decimal, error) {
	var ledger map[string]ledgerEntry
	if err := c.httpClient.GetJSON(ctx, c.accountPath("/portfolio/%s/ledger"), &ledger); err != nil {
		return decimal.Zero, fmt.Errorf("ledger: %w", err)
	}

	for currency, entry := range ledger {
		if strings.EqualFold(currency, "BASE") {
			return decimal.NewFromFloat(entry.CashBalance), nil
		}
	}
	return decimal.Zero, fmt.Errorf("ledger has no BASE currency entry")
}
