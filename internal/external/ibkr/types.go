package ibkr

import (
	"encoding/json"
	"strconv"
	"strings"
)

type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	Connected     bool   `json:"connected"`
	Message       string `json:"message"`
}

// conID accepts the contract id as a JSON number or string; the gateway uses both
type conID int64

func (c *conID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*c = conID(v)
	return nil
}

type positionResponse struct {
	AcctID       string  `json:"acctId"`
	Conid        conID   `json:"conid"`
	ContractDesc string  `json:"contractDesc"`
	Ticker       string  `json:"ticker"`
	Position     float64 `json:"position"`
	MktPrice     float64 `json:"mktPrice"`
	MktValue     float64 `json:"mktValue"`
	Currency     string  `json:"currency"`
	AssetClass   string  `json:"assetClass"`
}

func (p positionResponse) symbol() string {
	if p.Ticker != "" {
		return strings.ToUpper(p.Ticker)
	}
	return strings.ToUpper(strings.TrimSpace(p.ContractDesc))
}

type ledgerEntry struct {
	CashBalance      float64 `json:"cashbalance"`
	NetLiquidation   float64 `json:"netliquidationvalue"`
	Currency         string  `json:"currency"`
	StockMarketValue float64 `json:"stockmarketvalue"`
}

type secdefResult struct {
	Conid         conID  `json:"conid"`
	Symbol        string `json:"symbol"`
	CompanyHeader string `json:"companyHeader"`
	Description   string `json:"description"`
}

// snapshotEntry holds the requested market data fields keyed by field id
type snapshotEntry map[string]json.RawMessage

const fieldLast = "31"

// last returns field 31 (last price). The gateway prefixes it with "C" for a
// prior close and "H" for a halted contract.
func (s snapshotEntry) last() (string, bool) {
	raw, ok := s[fieldLast]
	if !ok {
		return "", false
	}
	v := strings.Trim(string(raw), `"`)
	v = strings.TrimLeft(v, "CH")
	v = strings.ReplaceAll(v, ",", "")
	return v, v != ""
}

type orderRequest struct {
	Orders []orderTicket `json:"orders"`
}

type orderTicket struct {
	Conid     int64   `json:"conid"`
	COID      string  `json:"cOID"`
	OrderType string  `json:"orderType"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price,omitempty"`
	TIF       string  `json:"tif"`
}

// orderReply is either a placed order or a confirmation prompt
type orderReply struct {
	OrderID     string   `json:"order_id"`
	OrderStatus string   `json:"order_status"`
	ReplyID     string   `json:"id"`
	Message     []string `json:"message"`
	Error       string   `json:"error"`
}
