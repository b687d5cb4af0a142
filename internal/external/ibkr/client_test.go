package ibkr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/config"
	"github.com/wonny/rebalancer/pkg/logger"
)

type gateway struct {
	t            *testing.T
	snapshotHits int32
	orderBody    orderRequest
	orderReplies []orderReply
	orderStatus  int
}

func (g *gateway) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/api/portfolio/U123/positions/0", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]interface{}{
			{"acctId": "U123", "conid": 265598, "contractDesc": "AAPL", "position": 10, "mktValue": 1500.5, "assetClass": "STK"},
			{"acctId": "U123", "conid": "208813720", "ticker": "googl", "position": 2, "mktValue": 5000, "assetClass": "STK"},
			{"acctId": "U123", "conid": 1, "contractDesc": "ES MAR25", "position": 1, "mktValue": 1, "assetClass": "FUT"},
			{"acctId": "U123", "conid": 2, "contractDesc": "FLAT", "position": 0, "mktValue": 0, "assetClass": "STK"},
		})
	})
	mux.HandleFunc("/v1/api/portfolio/U123/ledger", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"USD":  map[string]interface{}{"cashbalance": 900.25, "currency": "USD"},
			"BASE": map[string]interface{}{"cashbalance": 1000.75, "currency": "BASE"},
		})
	})
	mux.HandleFunc("/v1/api/iserver/secdef/search", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "MSFT":
			writeJSON(w, []map[string]interface{}{{"conid": "272093", "symbol": "MSFT"}})
		default:
			writeJSON(w, []map[string]interface{}{})
		}
	})
	mux.HandleFunc("/v1/api/iserver/marketdata/snapshot", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(g.t, "31", r.URL.Query().Get("fields"))
		if atomic.AddInt32(&g.snapshotHits, 1) == 1 {
			// first call only subscribes
			writeJSON(w, []map[string]interface{}{{"conid": 272093}})
			return
		}
		writeJSON(w, []map[string]interface{}{{"conid": 272093, "31": "C415.30"}})
	})
	mux.HandleFunc("/v1/api/iserver/account/U123/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(g.t, http.MethodPost, r.Method)
		assert.NoError(g.t, json.NewDecoder(r.Body).Decode(&g.orderBody))
		if g.orderStatus != 0 {
			w.WriteHeader(g.orderStatus)
			return
		}
		writeJSON(w, g.orderReplies)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, g *gateway) *Client {
	t.Helper()
	g.t = t
	srv := httptest.NewServer(g.handler())
	t.Cleanup(srv.Close)

	c := NewClient(config.BrokerConfig{Host: "127.0.0.1", Port: 5000, ClientID: 1, AccountID: "U123"}, logger.Nop()).
		WithBaseURL(srv.URL + "/v1/api")
	c.snapshotDelay = time.Millisecond
	return c
}

func TestGetAccount(t *testing.T) {
	c := newTestClient(t, &gateway{})

	acct, err := c.GetAccount(context.Background())
	require.NoError(t, err)

	assert.True(t, acct.Cash.Equal(decimal.RequireFromString("1000.75")))
	require.Len(t, acct.Positions, 2)
	assert.True(t, acct.Positions["AAPL"].Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, acct.Positions["GOOGL"].MarketValue.Equal(decimal.NewFromInt(5000)))

	// conids learned from positions skip the search
	id, err := c.Conid(context.Background(), "GOOGL")
	require.NoError(t, err)
	assert.Equal(t, int64(208813720), id)
}

func TestLatestPrice_PollsUntilPopulated(t *testing.T) {
	g := &gateway{}
	c := newTestClient(t, g)

	price, err := c.LatestPrice(context.Background(), "MSFT.US")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("415.30")), "got %s", price)
	assert.Equal(t, int32(2), atomic.LoadInt32(&g.snapshotHits))
}

func TestLatestPrice_UnknownTicker(t *testing.T) {
	c := newTestClient(t, &gateway{})

	_, err := c.LatestPrice(context.Background(), "NOPE")
	var missing *contracts.MissingPriceError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "NOPE", missing.Ticker)
}

func TestSubmitOrder(t *testing.T) {
	order := &contracts.Order{
		ID: "rb1-1-001", Ticker: "MSFT", Side: contracts.OrderSideBuy,
		Quantity: decimal.NewFromInt(3), OrderType: contracts.OrderTypeMarket,
	}

	tests := []struct {
		name       string
		replies    []orderReply
		wantStatus contracts.Status
	}{
		{"placed", []orderReply{{OrderID: "1111", OrderStatus: "Submitted"}}, contracts.StatusSubmitted},
		{"filled", []orderReply{{OrderID: "1112", OrderStatus: "Filled"}}, contracts.StatusFilled},
		{"prompt", []orderReply{{ReplyID: "abc", Message: []string{"Are you sure?"}}}, contracts.StatusRejected},
		{"error", []orderReply{{Error: "no trading permissions"}}, contracts.StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &gateway{orderReplies: tt.replies}
			c := newTestClient(t, g)

			result, err := c.SubmitOrder(context.Background(), order)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantStatus != contracts.StatusRejected, result.Accepted())

			require.Len(t, g.orderBody.Orders, 1)
			ticket := g.orderBody.Orders[0]
			assert.Equal(t, int64(272093), ticket.Conid)
			assert.Equal(t, "rb1-1-001", ticket.COID)
			assert.Equal(t, "MKT", ticket.OrderType)
			assert.Equal(t, "BUY", ticket.Side)
			assert.Equal(t, 3.0, ticket.Quantity)
		})
	}
}

func TestSubmitOrder_ServerErrorNotRetried(t *testing.T) {
	g := &gateway{orderStatus: http.StatusServiceUnavailable}
	var hits int32
	g.t = t
	mux := g.handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/api/iserver/account/U123/orders" {
			atomic.AddInt32(&hits, 1)
		}
		mux.ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := NewClient(config.BrokerConfig{AccountID: "U123"}, logger.Nop()).WithBaseURL(srv.URL + "/v1/api")

	_, err := c.SubmitOrder(context.Background(), &contracts.Order{ID: "x", Ticker: "MSFT", Side: contracts.OrderSideSell, Quantity: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestConID_Unmarshal(t *testing.T) {
	var v struct {
		A conID `json:"a"`
		B conID `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "43"}`), &v))
	assert.Equal(t, conID(42), v.A)
	assert.Equal(t, conID(43), v.B)
}
