package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/config"
	"github.com/wonny/rebalancer/pkg/httputil"
	"github.com/wonny/rebalancer/pkg/logger"
)

// DefaultExchange is appended to tickers that carry no exchange suffix
const DefaultExchange = "US"

// Client fetches end-of-day prices, dividends and delayed quotes from EODHD.
// See https://eodhd.com/financial-apis/
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// NewClient creates a new EODHD client limited to cfg.RatePerSecond requests
func NewClient(cfg config.DataAPIConfig, log *logger.Logger) *Client {
	log = log.Module("eodhd")

	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient: httputil.New(log).WithRateLimit(cfg.RatePerSecond, burst),
		logger:     log,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.Key,
	}
}

// eodRow is one /eod record
type eodRow struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// divRow is one /div record; Date is the ex-dividend date
type divRow struct {
	Date     string          `json:"date"`
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

type realTimeQuote struct {
	Code      string          `json:"code"`
	Timestamp json.RawMessage `json:"timestamp"`
	Close     json.RawMessage `json:"close"` // number, or "NA" when unavailable
}

// Series returns closes and dividends for ticker in [from, to] as one series
func (c *Client) Series(ctx context.Context, ticker string, from, to time.Time) (contracts.PriceSeries, error) {
	var rows []eodRow
	if err := c.httpClient.GetJSON(ctx, c.endpoint("eod", ticker, from, to), &rows); err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("eod %s: %w", ticker, err)
	}

	var divs []divRow
	if err := c.httpClient.GetJSON(ctx, c.endpoint("div", ticker, from, to), &divs); err != nil {
		return contracts.PriceSeries{}, fmt.Errorf("dividends %s: %w", ticker, err)
	}

	series, err := merge(ticker, rows, divs)
	if err != nil {
		return contracts.PriceSeries{}, err
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker":    ticker,
		"bars":      series.Len(),
		"dividends": len(divs),
	}).Debug("Series fetched")

	return series, nil
}

// LatestPrice returns the delayed real-time close
func (c *Client) LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("fmt", "json")
	q.Set("api_token", c.apiKey)
	endpoint := fmt.Sprintf("%s/real-time/%s?%s", c.baseURL, url.PathEscape(Symbol(ticker)), q.Encode())

	var quote realTimeQuote
	if err := c.httpClient.GetJSON(ctx, endpoint, &quote); err != nil {
		return decimal.Zero, fmt.Errorf("real-time %s: %w", ticker, err)
	}

	price, err := decimal.NewFromString(strings.Trim(string(quote.Close), `"`))
	if err != nil || !price.IsPositive() {
		return decimal.Zero, &contracts.MissingPriceError{Ticker: ticker}
	}
	return price, nil
}

func (c *Client) endpoint(kind, ticker string, from, to time.Time) string {
	q := url.Values{}
	q.Set("fmt", "json")
	q.Set("api_token", c.apiKey)
	q.Set("from", from.Format(contracts.DateLayout))
	q.Set("to", to.Format(contracts.DateLayout))
	return fmt.Sprintf("%s/%s/%s?%s", c.baseURL, kind, url.PathEscape(Symbol(ticker)), q.Encode())
}

// Symbol returns the EODHD code for ticker, adding the default exchange
func Symbol(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if strings.Contains(ticker, ".") {
		return ticker
	}
	return ticker + "." + DefaultExchange
}

// merge joins closes and dividends. A dividend whose ex-date has no bar is
// booked on the next available bar; one past the last bar is dropped.
func merge(ticker string, rows []eodRow, divs []divRow) (contracts.PriceSeries, error) {
	series := contracts.PriceSeries{Ticker: ticker, Bars: make([]contracts.Bar, 0, len(rows))}

	for _, r := range rows {
		d, err := contracts.ParseDate(r.Date)
		if err != nil {
			return contracts.PriceSeries{}, &contracts.InvalidSeriesError{Ticker: ticker, Reason: "bad date " + r.Date}
		}
		series.Bars = append(series.Bars, contracts.Bar{Date: d, Close: r.Close})
	}
	sort.SliceStable(series.Bars, func(i, j int) bool {
		return series.Bars[i].Date.Before(series.Bars[j].Date)
	})

	for _, div := range divs {
		d, err := contracts.ParseDate(div.Date)
		if err != nil {
			return contracts.PriceSeries{}, &contracts.InvalidSeriesError{Ticker: ticker, Reason: "bad dividend date " + div.Date}
		}
		i := sort.Search(len(series.Bars), func(i int) bool {
			return !series.Bars[i].Date.Before(d)
		})
		if i == len(series.Bars) {
			continue
		}
		series.Bars[i].Dividend = series.Bars[i].Dividend.Add(div.Value)
	}

	if err := series.Validate(); err != nil {
		return contracts.PriceSeries{}, err
	}
	return series, nil
}
