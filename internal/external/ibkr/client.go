package ibkr

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wonny/rebalancer/pkg/config"
	"github.com/wonny/rebalancer/pkg/httputil"
	"github.com/wonny/rebalancer/pkg/logger"
)

// Client talks to an Interactive Brokers Client Portal gateway.
// The gateway holds the brokerage session; this client only issues REST calls.
type Client struct {
	httpClient  *httputil.Client // reads, retried
	orderClient *httputil.Client // order submission, never retried
	logger      *logger.Logger
	cfg         config.BrokerConfig
	baseURL     string

	snapshotAttempts int
	snapshotDelay    time.Duration

	// ticker → contract id
	conids   map[string]int64
	conidsMu sync.RWMutex
}

// NewClient creates a new Client Portal client
func NewClient(cfg config.BrokerConfig, log *logger.Logger) *Client {
	log = log.Module("ibkr")

	reads := httputil.NewWithTimeout(log, 15*time.Second).WithRetry(2, 500*time.Millisecond)
	orders := httputil.NewWithTimeout(log, 30*time.Second).DisableRetry()
	if cfg.InsecureTLS {
		reads.WithInsecureTLS()
		orders.WithInsecureTLS()
	}

	return &Client{
		httpClient:       reads,
		orderClient:      orders,
		logger:           log,
		cfg:              cfg,
		baseURL:          cfg.BaseURL(),
		snapshotAttempts: 3,
		snapshotDelay:    time.Second,
		conids:           make(map[string]int64),
	}
}

// WithBaseURL overrides the gateway root derived from host and port
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// Ping verifies the gateway session is authenticated
func (c *Client) Ping(ctx context.Context) error {
	var status authStatus
	if err := c.httpClient.PostJSONInto(ctx, c.url("/iserver/auth/status"), struct{}{}, &status); err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if !status.Authenticated {
		return fmt.Errorf("gateway session not authenticated: %s", status.Message)
	}
	return nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) accountPath(format string) string {
	return c.url(fmt.Sprintf(format, url.PathEscape(c.cfg.AccountID)))
}

// symbol maps an exchange-qualified ticker ("AAPL.US") to the gateway symbol
func symbol(ticker string) string {
	return strings.TrimSuffix(strings.ToUpper(ticker), ".US")
}
