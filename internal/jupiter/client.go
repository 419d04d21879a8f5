// Package jupiter talks to the Jupiter aggregator price, quote and swap APIs.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/exchange"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// VenueName identifies Jupiter in logs and errors.
const VenueName = "jupiter"

// Client is a Jupiter HTTP client.
type Client struct {
	rest        *resty.Client
	priceURL    string
	swap        *resty.Client
	slippageBps int
	logger      *zap.Logger
	limiter     *rate.Limiter
}

// NewClient creates a Jupiter client from configuration.
func NewClient(cfg config.Jupiter, logger *zap.Logger) *Client {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	return &Client{
		rest:        resty.New(),
		priceURL:    cfg.PriceURL,
		swap:        resty.New().SetBaseURL(strings.TrimRight(cfg.SwapURL, "/")),
		slippageBps: cfg.SlippageBps,
		logger:      logger,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// TokenInfo is the price API entry for a symbol.
type TokenInfo struct {
	// Mint is the token mint address.
	Mint  string          `json:"id"`
	Price decimal.Decimal `json:"price"`
}

type priceResponse struct {
	Data map[string]TokenInfo `json:"data"`
}

func (c *Client) do(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, exchange.NewError(VenueName, exchange.KindNetwork, fmt.Errorf("rate limiter wait failed: %w", err))
	}

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
	resp, err := req.SetContext(ctx).Execute(method, url)
	if err != nil {
		return nil, exchange.NewError(VenueName, exchange.ClassifyTransport(err), fmt.Errorf("request %s %s: %w", method, url, err))
	}
	if resp.IsError() {
		return nil, exchange.NewError(VenueName, exchange.ClassifyStatus(resp.StatusCode()),
			fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String()))
	}
	return resp, nil
}

// Token resolves the mint address and USD price of a symbol.
func (c *Client) Token(ctx context.Context, symbol string) (TokenInfo, error) {
	req := c.rest.R().
		SetQueryParam("ids", symbol).
		SetResult(&priceResponse{})

	resp, err := c.do(ctx, http.MethodGet, c.priceURL, req)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}

	info, ok := resp.Result().(*priceResponse).Data[symbol]
	if !ok || info.Mint == "" {
		return TokenInfo{}, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("token %s not listed", symbol))
	}
	return info, nil
}

// Quote is a swap route. Raw is forwarded verbatim to the swap endpoint.
type Quote struct {
	Raw       json.RawMessage
	InAmount  uint64
	OutAmount uint64
}

type quoteAmounts struct {
	InAmount  string `json:"inAmount"`
	OutAmount string `json:"outAmount"`
	Error     string `json:"error"`
}

// Quote asks for the best route swapping amount base units of inputMint into outputMint.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (*Quote, error) {
	req := c.swap.R().
		SetQueryParams(map[string]string{
			"inputMint":   inputMint,
			"outputMint":  outputMint,
			"amount":      strconv.FormatUint(amount, 10),
			"slippageBps": strconv.Itoa(c.slippageBps),
		})

	resp, err := c.do(ctx, http.MethodGet, "/quote", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	raw := resp.Body()
	var amounts quoteAmounts
	if err := json.Unmarshal(raw, &amounts); err != nil {
		return nil, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("decode quote: %w", err))
	}
	if amounts.Error != "" {
		return nil, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("quote rejected: %s", amounts.Error))
	}

	q := &Quote{Raw: json.RawMessage(raw)}
	if q.InAmount, err = strconv.ParseUint(amounts.InAmount, 10, 64); err != nil {
		return nil, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("bad inAmount %q: %w", amounts.InAmount, err))
	}
	if q.OutAmount, err = strconv.ParseUint(amounts.OutAmount, 10, 64); err != nil {
		return nil, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("bad outAmount %q: %w", amounts.OutAmount, err))
	}
	return q, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// SwapTransaction builds the unsigned, base64 encoded swap transaction for quote.
func (c *Client) SwapTransaction(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	req := c.swap.R().
		SetHeader("Content-Type", "application/json").
		SetBody(swapRequest{
			QuoteResponse:             quote.Raw,
			UserPublicKey:             userPublicKey,
			WrapAndUnwrapSol:          true,
			PrioritizationFeeLamports: "auto",
		}).
		SetResult(&swapResponse{})

	resp, err := c.do(ctx, http.MethodPost, "/swap", req)
	if err != nil {
		return "", fmt.Errorf("failed to build swap: %w", err)
	}

	tx := resp.Result().(*swapResponse).SwapTransaction
	if tx == "" {
		return "", exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("swap transaction data not found in response"))
	}
	return tx, nil
}
