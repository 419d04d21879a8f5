// Package mexc is a REST client for the MEXC spot v3 API.
package mexc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/exchange"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// VenueName identifies MEXC in logs and errors.
	VenueName = "mexc"

	baseURL         = "https://api.mexc.com/api/v3"
	recvWindow      = "5000" // How long a request is valid in milliseconds
	OrderTypeMarket = "MARKET"
	OrderSideBuy    = "BUY"
	OrderSideSell   = "SELL"
)

// RestClient is a client for the MEXC REST API.
// It implements exchange.Exchange.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
	now       func() time.Time
}

// ensure RestClient implements the interface
var _ exchange.Exchange = (*RestClient)(nil)

// NewRestClient creates a new MEXC REST API client.
func NewRestClient(cfg config.Mexc, logger *zap.Logger) *RestClient {
	url := cfg.BaseURL
	if url == "" {
		url = baseURL
	}

	client := resty.New().SetBaseURL(strings.TrimRight(url, "/"))

	// rate.Limit is requests per second.
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   rate.NewLimiter(limit, burst),
		now:       time.Now,
	}
}

func (c *RestClient) Name() string { return VenueName }

// sign creates a HMAC-SHA256 signature for the request.
func (c *RestClient) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// apiError is the error body MEXC returns with non-2xx statuses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// signed returns path with the signed query string appended. The query is
// built by hand because the signature must come last.
func (c *RestClient) signed(req *resty.Request, path string, params url.Values) (*resty.Request, string) {
	params.Set("timestamp", fmt.Sprintf("%d", c.now().UnixMilli()))
	params.Set("recvWindow", recvWindow)
	queryString := params.Encode()
	req.
		SetHeader("X-MEXC-APIKEY", c.apiKey).
		SetHeader("Content-Type", "application/json")
	return req, path + "?" + queryString + "&signature=" + c.sign(queryString)
}

// doRequest executes req once after waiting for the rate limiter.
// Failures are returned as *exchange.Error and never retried.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, exchange.NewError(VenueName, exchange.KindNetwork, fmt.Errorf("rate limiter wait failed: %w", err))
	}

	var apiErr apiError
	req.SetContext(ctx).SetError(&apiErr)

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, exchange.NewError(VenueName, exchange.ClassifyTransport(err), fmt.Errorf("request %s %s: %w", method, url, err))
	}
	if resp.IsError() {
		kind := exchange.ClassifyStatus(resp.StatusCode())
		if authCodes[apiErr.Code] {
			kind = exchange.KindAuthentication
		}
		return nil, exchange.NewError(VenueName, kind,
			fmt.Errorf("request failed with status %s: code %d: %s", resp.Status(), apiErr.Code, apiErr.Msg))
	}
	return resp, nil
}

// authCodes are MEXC error codes caused by bad credentials or permissions.
var authCodes = map[int]bool{
	700001: true, // api key required
	700002: true, // signature not valid
	700006: true, // ip not in whitelist
	700007: true, // no permission
	10072:  true, // invalid access key
}

type accountResponse struct {
	Balances []struct {
		Asset  string          `json:"asset"`
		Free   decimal.Decimal `json:"free"`
		Locked decimal.Decimal `json:"locked"`
	} `json:"balances"`
}

// FetchBalances returns the spot balances of the account.
func (c *RestClient) FetchBalances(ctx context.Context) (exchange.Balances, error) {
	req, path := c.signed(c.client.R().SetResult(&accountResponse{}), "/account", url.Values{})

	resp, err := c.doRequest(ctx, http.MethodGet, path, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	result := resp.Result().(*accountResponse)
	balances := make(exchange.Balances, len(result.Balances))
	for _, b := range result.Balances {
		balances[strings.ToUpper(b.Asset)] = exchange.Balance{Asset: b.Asset, Free: b.Free, Locked: b.Locked}
	}
	return balances, nil
}

// TickerPrice represents the response for a single ticker price.
type TickerPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// LastPrice fetches the latest price of symbol.
func (c *RestClient) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetResult(&TickerPrice{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/ticker/price", req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get ticker price for %s: %w", symbol, err)
	}

	result := resp.Result().(*TickerPrice)
	if result.Symbol != "" && result.Symbol != symbol {
		return decimal.Zero, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("ticker returned %s, want %s", result.Symbol, symbol))
	}
	return result.Price, nil
}

type openOrder struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"orderId"`
}

// CancelOpenOrders cancels every open order on symbol.
func (c *RestClient) CancelOpenOrders(ctx context.Context, symbol string) (int, error) {
	var open []openOrder
	params := url.Values{}
	params.Set("symbol", symbol)
	req, path := c.signed(c.client.R().SetResult(&open), "/openOrders", params)

	if _, err := c.doRequest(ctx, http.MethodGet, path, req); err != nil {
		return 0, fmt.Errorf("failed to list open orders for %s: %w", symbol, err)
	}
	if len(open) == 0 {
		return 0, nil
	}

	c.logger.Info("Cancelling open orders", zap.String("symbol", symbol), zap.Int("count", len(open)))
	params = url.Values{}
	params.Set("symbol", symbol)
	req, path = c.signed(c.client.R(), "/openOrders", params)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, req); err != nil {
		return 0, fmt.Errorf("failed to cancel open orders for %s: %w", symbol, err)
	}
	return len(open), nil
}

// CreateOrderResponse represents the response from creating a new order.
type CreateOrderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             string `json:"orderId"`
	Price               string `json:"price"`
	OrigQuantity        string `json:"origQty"`
	ExecutedQuantity    string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	TransactTime        int64  `json:"transactTime"`
}

// MarketBuyQuote spends quoteQty USDT on symbol.
func (c *RestClient) MarketBuyQuote(ctx context.Context, symbol string, quoteQty decimal.Decimal) (*exchange.Order, error) {
	params := url.Values{}
	params.Set("quoteOrderQty", quoteQty.String())
	return c.createOrder(ctx, symbol, OrderSideBuy, params)
}

// MarketSell sells quantity of the base asset of symbol.
func (c *RestClient) MarketSell(ctx context.Context, symbol string, quantity decimal.Decimal) (*exchange.Order, error) {
	params := url.Values{}
	params.Set("quantity", quantity.String())
	return c.createOrder(ctx, symbol, OrderSideSell, params)
}

// createOrder places a MARKET order.
func (c *RestClient) createOrder(ctx context.Context, symbol, side string, params url.Values) (*exchange.Order, error) {
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", OrderTypeMarket)

	req, path := c.signed(c.client.R().SetResult(&CreateOrderResponse{}), "/order", params)

	resp, err := c.doRequest(ctx, http.MethodPost, path, req)
	if err != nil {
		c.logger.Error("Failed to create order",
			zap.Error(err),
			zap.String("symbol", symbol),
			zap.String("side", side),
		)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := resp.Result().(*CreateOrderResponse)
	if result.OrderID == "" {
		return nil, exchange.NewError(VenueName, exchange.KindExchange, errors.New("order response carried no orderId"))
	}
	c.logger.Info("Successfully created order", zap.String("symbol", symbol), zap.String("side", side), zap.String("order_id", result.OrderID))

	return &exchange.Order{
		ID:          result.OrderID,
		Symbol:      result.Symbol,
		ExecutedQty: parseOrZero(result.ExecutedQuantity),
		QuoteQty:    parseOrZero(result.CummulativeQuoteQty),
	}, nil
}

func parseOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
