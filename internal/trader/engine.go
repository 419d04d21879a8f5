package trader

import (
	"context"
	"fmt"

	"signal-relay-go/internal/exchange"
	"signal-relay-go/internal/models"
	"signal-relay-go/internal/sizing"
	"signal-relay-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Policy captures how one centralized venue sizes and books its orders.
type Policy struct {
	// MinQuoteFree is the free USDT a buy must strictly exceed.
	MinQuoteFree decimal.Decimal
	// FeeAsset, when set, sizes buys with the balance resolver using the
	// USDT value of this asset as fee coverage. Otherwise the whole free
	// USDT balance is spent.
	FeeAsset string
	// FloorSellQty floors the sell quantity to two decimals.
	FloorSellQty bool
	// TrackAllocations upserts sale proceeds into the allocation table.
	TrackAllocations bool
}

// BinanceUSPolicy pays fees in BNB and recycles sale proceeds.
var BinanceUSPolicy = Policy{
	MinQuoteFree:     decimal.Zero,
	FeeAsset:         "BNB",
	FloorSellQty:     true,
	TrackAllocations: true,
}

// MexcPolicy spends the full free balance once it exceeds 5 USDT.
var MexcPolicy = Policy{
	MinQuoteFree: decimal.NewFromInt(5),
}

// Engine executes signals on a centralized exchange.
type Engine struct {
	venue    exchange.Exchange
	policy   Policy
	store    store.Store
	resolver *sizing.Resolver
}

// ensure Engine implements the interface
var _ Executor = (*Engine)(nil)

// NewEngine creates an executor for venue.
func NewEngine(venue exchange.Exchange, policy Policy, st store.Store, logger *zap.Logger) *Engine {
	return &Engine{
		venue:    venue,
		policy:   policy,
		store:    st,
		resolver: sizing.NewResolver(st, logger),
	}
}

// Venue returns the exchange name.
func (e *Engine) Venue() string {
	return e.venue.Name()
}

// Execute cancels any open order on the instrument, then buys or sells it.
func (e *Engine) Execute(ctx context.Context, l *zap.Logger, sig Signal) (Result, error) {
	symbol := exchange.Symbol(sig.Name)
	l = l.With(zap.String("symbol", symbol), zap.String("action", sig.Action))

	balances, err := e.venue.FetchBalances(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch balances: %w", err)
	}

	cancelled, err := e.venue.CancelOpenOrders(ctx, symbol)
	if err != nil {
		return Result{}, fmt.Errorf("cancel open orders on %s: %w", symbol, err)
	}
	if cancelled > 0 {
		l.Info("Cancelled open orders", zap.Int("count", cancelled))
	}

	quoteFree := balances.Free(exchange.QuoteAsset)
	tokenFree := balances.Free(sig.Name)

	switch {
	case sig.Action == string(models.ActionBuy) && quoteFree.GreaterThan(e.policy.MinQuoteFree):
		err = e.buy(ctx, l, sig, symbol, balances)
	case sig.Action == string(models.ActionSell) && tokenFree.IsPositive():
		err = e.sell(ctx, l, sig, symbol, tokenFree)
	default:
		l.Warn("Insufficient balance or invalid action",
			zap.Stringer("usdt_free", quoteFree),
			zap.Stringer("token_free", tokenFree),
		)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Message: MessageReceived}, nil
}

func (e *Engine) buy(ctx context.Context, l *zap.Logger, sig Signal, symbol string, balances exchange.Balances) error {
	quoteFree := balances.Free(exchange.QuoteAsset)

	var size decimal.Decimal
	if e.policy.FeeAsset != "" {
		size = e.resolver.Size(ctx, sig.Name, quoteFree, e.feeCoverage(balances))
	} else {
		size = sizing.FloorCents(quoteFree)
	}
	if !size.IsPositive() {
		l.Warn("Resolved order size is not positive, skipping buy", zap.Stringer("usdt_free", quoteFree))
		return nil
	}

	price, err := e.venue.LastPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("last price of %s: %w", symbol, err)
	}

	l.Info("Executing buy", zap.Stringer("quote_qty", size), zap.Stringer("last_price", price))
	order, err := e.venue.MarketBuyQuote(ctx, symbol, size)
	if err != nil {
		return fmt.Errorf("market buy %s: %w", symbol, err)
	}
	l.Info("Buy order filled", zap.String("order_id", order.ID), zap.Stringer("executed_qty", order.ExecutedQty))

	journal(ctx, l, e.store, sig.record(models.ActionBuy, price, size))
	return nil
}

func (e *Engine) sell(ctx context.Context, l *zap.Logger, sig Signal, symbol string, tokenFree decimal.Decimal) error {
	qty := tokenFree
	if e.policy.FloorSellQty {
		qty = sizing.FloorCents(qty)
	}
	if !qty.IsPositive() {
		l.Warn("Sell quantity rounds to zero, skipping sell", zap.Stringer("token_free", tokenFree))
		return nil
	}

	price, err := e.venue.LastPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("last price of %s: %w", symbol, err)
	}

	l.Info("Executing sell", zap.Stringer("quantity", qty), zap.Stringer("last_price", price))
	order, err := e.venue.MarketSell(ctx, symbol, qty)
	if err != nil {
		return fmt.Errorf("market sell %s: %w", symbol, err)
	}

	proceeds := sellProceeds(order, qty, price)
	l.Info("Sell order filled", zap.String("order_id", order.ID), zap.Stringer("proceeds", proceeds))

	journal(ctx, l, e.store, sig.record(models.ActionSell, price, proceeds))
	if e.policy.TrackAllocations {
		trackAllocation(ctx, l, e.store, sig.Name, proceeds)
	}
	return nil
}

// feeCoverage values the free fee asset in USDT at its last price.
func (e *Engine) feeCoverage(balances exchange.Balances) sizing.FeeCoverageFunc {
	return func(ctx context.Context) (decimal.Decimal, error) {
		free := balances.Free(e.policy.FeeAsset)
		if free.IsZero() {
			return decimal.Zero, nil
		}
		price, err := e.venue.LastPrice(ctx, exchange.Symbol(e.policy.FeeAsset))
		if err != nil {
			return decimal.Zero, fmt.Errorf("last price of %s: %w", e.policy.FeeAsset, err)
		}
		return free.Mul(price), nil
	}
}
