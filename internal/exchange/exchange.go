// Package exchange defines the boundary every centralized venue adapter implements.
package exchange

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// QuoteAsset is the settlement currency of every traded pair.
const QuoteAsset = "USDT"

// Symbol returns the venue pair symbol for an instrument quoted in USDT.
func Symbol(name string) string {
	return strings.ToUpper(name) + QuoteAsset
}

// Balance is the holding of one asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Balances is keyed by upper-case asset code.
type Balances map[string]Balance

// Free returns the free amount of asset, zero when the account holds none.
func (b Balances) Free(asset string) decimal.Decimal {
	if bal, ok := b[strings.ToUpper(asset)]; ok {
		return bal.Free
	}
	return decimal.Zero
}

// Fill is one execution of a market order.
type Fill struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Order is the venue's acknowledgement of a market order.
type Order struct {
	ID          string
	Symbol      string
	ExecutedQty decimal.Decimal
	// QuoteQty is the quote amount exchanged, zero when the venue does not report it.
	QuoteQty decimal.Decimal
	Fills    []Fill
}

// AveragePrice is QuoteQty / ExecutedQty, or zero when either is missing.
func (o *Order) AveragePrice() decimal.Decimal {
	if o.ExecutedQty.IsZero() || o.QuoteQty.IsZero() {
		return decimal.Zero
	}
	return o.QuoteQty.Div(o.ExecutedQty)
}

// Exchange is a spot venue able to place USDT market orders.
type Exchange interface {
	Name() string
	FetchBalances(ctx context.Context) (Balances, error)
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// CancelOpenOrders cancels every open order on symbol and reports how many there were.
	CancelOpenOrders(ctx context.Context, symbol string) (int, error)
	MarketBuyQuote(ctx context.Context, symbol string, quoteQty decimal.Decimal) (*Order, error)
	MarketSell(ctx context.Context, symbol string, quantity decimal.Decimal) (*Order, error)
}
