// Package exchange is the REST client for the upstream spot exchange:
// trading-pair metadata and signed order placement.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Mugenseiki1988/smooth-trade/internal/crypto"
	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// Client talks to the exchange REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the given API root, e.g.
// "https://api.exchange.example.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// exchangeInfoResponse is the metadata payload listing every symbol.
type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

// ActivePairs fetches the exchange metadata and returns every pair currently
// open for trading.
func (c *Client) ActivePairs(ctx context.Context) ([]domain.TradingPair, error) {
	body, err := c.doGet(ctx, "/api/v3/exchangeInfo")
	if err != nil {
		return nil, fmt.Errorf("exchange: get metadata: %w", err)
	}

	var info exchangeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("exchange: decode metadata: %w", err)
	}

	pairs := make([]domain.TradingPair, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		pairs = append(pairs, domain.TradingPair{
			Symbol: s.Symbol,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
		})
	}
	return pairs, nil
}

// orderResponse is the exchange's acknowledgement of a placed order.
type orderResponse struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
	Fills   []struct {
		Price string `json:"price"`
		Qty   string `json:"qty"`
	} `json:"fills"`
}

// PlaceOrder submits one order signed with the given credential. A zero
// request price places a market order.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest, cred domain.Credential) (domain.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	if req.Price > 0 {
		params.Set("type", "LIMIT")
		params.Set("timeInForce", "IOC")
		params.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
	} else {
		params.Set("type", "MARKET")
	}

	query := crypto.NewSigner(cred.Secret).SignQuery(params)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v3/order", strings.NewReader(query))
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("exchange: build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("X-MBX-APIKEY", cred.Key)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("exchange: place order %s %s: %w", req.Side, req.Symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("exchange: read order response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.OrderResult{}, fmt.Errorf("exchange: place order %s %s: status %d: %s",
			req.Side, req.Symbol, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ack orderResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return domain.OrderResult{}, fmt.Errorf("exchange: decode order response: %w", err)
	}
	return toOrderResult(ack)
}

// toOrderResult converts the wire acknowledgement, averaging fills weighted
// by quantity.
func toOrderResult(ack orderResponse) (domain.OrderResult, error) {
	result := domain.OrderResult{
		OrderID: strconv.FormatInt(ack.OrderID, 10),
		Status:  ack.Status,
	}

	var notional float64
	for _, f := range ack.Fills {
		price, err := strconv.ParseFloat(f.Price, 64)
		if err != nil {
			return domain.OrderResult{}, fmt.Errorf("exchange: parse fill price %q: %w", f.Price, err)
		}
		qty, err := strconv.ParseFloat(f.Qty, 64)
		if err != nil {
			return domain.OrderResult{}, fmt.Errorf("exchange: parse fill qty %q: %w", f.Qty, err)
		}
		result.FilledQty += qty
		notional += price * qty
	}
	if result.FilledQty > 0 {
		result.FilledPrice = notional / result.FilledQty
	}
	return result, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Compile-time interface checks.
var (
	_ domain.PairSource  = (*Client)(nil)
	_ domain.OrderPlacer = (*Client)(nil)
)
