// Package binanceus adapts the Binance US spot API to exchange.Exchange.
package binanceus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/exchange"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VenueName identifies Binance US in logs and errors.
const VenueName = "binanceus"

// DefaultBaseURL is the Binance US REST endpoint.
const DefaultBaseURL = "https://api.binance.us"

// Client is a Binance US spot client.
type Client struct {
	api    *binance.Client
	logger *zap.Logger
}

// ensure Client implements the interface
var _ exchange.Exchange = (*Client)(nil)

// NewClient creates a Binance US client from configuration.
func NewClient(cfg config.Binance, logger *zap.Logger) *Client {
	api := binance.NewClient(cfg.ApiKey, cfg.SecretKey)
	api.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		api.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	logger.Debug("Using Binance US API", zap.String("base_url", api.BaseURL))
	return &Client{api: api, logger: logger}
}

func (c *Client) Name() string { return VenueName }

// FetchBalances returns every asset of the account keyed by asset code.
func (c *Client) FetchBalances(ctx context.Context) (exchange.Balances, error) {
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get account: %w", err))
	}

	balances := make(exchange.Balances, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("bad free balance %q for %s: %w", b.Free, b.Asset, err))
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			locked = decimal.Zero
		}
		balances[strings.ToUpper(b.Asset)] = exchange.Balance{Asset: b.Asset, Free: free, Locked: locked}
	}
	return balances, nil
}

// LastPrice returns the latest trade price of symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := c.api.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, classify(fmt.Errorf("failed to get price for %s: %w", symbol, err))
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return decimal.Zero, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("bad price %q for %s: %w", p.Price, symbol, err))
			}
			return price, nil
		}
	}
	return decimal.Zero, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("no price returned for %s", symbol))
}

// CancelOpenOrders cancels all open orders on symbol.
func (c *Client) CancelOpenOrders(ctx context.Context, symbol string) (int, error) {
	open, err := c.api.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, classify(fmt.Errorf("failed to list open orders for %s: %w", symbol, err))
	}
	if len(open) == 0 {
		return 0, nil
	}

	c.logger.Info("Cancelling open orders", zap.String("symbol", symbol), zap.Int("count", len(open)))
	if _, err := c.api.NewCancelOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return 0, classify(fmt.Errorf("failed to cancel open orders for %s: %w", symbol, err))
	}
	return len(open), nil
}

// MarketBuyQuote spends quoteQty USDT on symbol at market.
func (c *Client) MarketBuyQuote(ctx context.Context, symbol string, quoteQty decimal.Decimal) (*exchange.Order, error) {
	res, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(quoteQty.String()).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create buy order for %s: %w", symbol, err))
	}
	c.logger.Info("Successfully created order", zap.String("symbol", symbol), zap.String("side", "BUY"), zap.Int64("order_id", res.OrderID))
	return toOrder(res), nil
}

// MarketSell sells quantity of the base asset of symbol at market.
func (c *Client) MarketSell(ctx context.Context, symbol string, quantity decimal.Decimal) (*exchange.Order, error) {
	res, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(quantity.String()).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create sell order for %s: %w", symbol, err))
	}
	c.logger.Info("Successfully created order", zap.String("symbol", symbol), zap.String("side", "SELL"), zap.Int64("order_id", res.OrderID))
	return toOrder(res), nil
}

func toOrder(res *binance.CreateOrderResponse) *exchange.Order {
	order := &exchange.Order{
		ID:          strconv.FormatInt(res.OrderID, 10),
		Symbol:      res.Symbol,
		ExecutedQty: parseOrZero(res.ExecutedQuantity),
		QuoteQty:    parseOrZero(res.CummulativeQuoteQuantity),
	}
	for _, f := range res.Fills {
		if f == nil {
			continue
		}
		order.Fills = append(order.Fills, exchange.Fill{
			Price:    parseOrZero(f.Price),
			Quantity: parseOrZero(f.Quantity),
		})
	}
	return order
}

func parseOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// classify tags err with the kind derived from the Binance error code.
func classify(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return exchange.NewError(VenueName, kindForCode(apiErr.Code), err)
	}
	return exchange.NewError(VenueName, exchange.ClassifyTransport(err), err)
}

func kindForCode(code int64) exchange.Kind {
	switch code {
	case -1002, -1022, -2008, -2014, -2015:
		return exchange.KindAuthentication
	case -1000, -1001, -1003, -1008, -1015:
		return exchange.KindNotAvailable
	case -1007:
		return exchange.KindNetwork
	default:
		return exchange.KindExchange
	}
}
