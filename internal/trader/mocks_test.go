package trader

import (
	"context"
	"testing"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/database"
	"signal-relay-go/internal/exchange"
	"signal-relay-go/internal/jupiter"
	"signal-relay-go/internal/solana"
	"signal-relay-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockExchange is a mock implementation of exchange.Exchange.
type MockExchange struct {
	mock.Mock
}

func (m *MockExchange) Name() string { return "mockex" }

func (m *MockExchange) FetchBalances(ctx context.Context) (exchange.Balances, error) {
	args := m.Called(ctx)
	return args.Get(0).(exchange.Balances), args.Error(1)
}

func (m *MockExchange) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockExchange) CancelOpenOrders(ctx context.Context, symbol string) (int, error) {
	args := m.Called(ctx, symbol)
	return args.Int(0), args.Error(1)
}

func (m *MockExchange) MarketBuyQuote(ctx context.Context, symbol string, quoteQty decimal.Decimal) (*exchange.Order, error) {
	args := m.Called(ctx, symbol, quoteQty)
	order, _ := args.Get(0).(*exchange.Order)
	return order, args.Error(1)
}

func (m *MockExchange) MarketSell(ctx context.Context, symbol string, quantity decimal.Decimal) (*exchange.Order, error) {
	args := m.Called(ctx, symbol, quantity)
	order, _ := args.Get(0).(*exchange.Order)
	return order, args.Error(1)
}

// MockAggregator is a mock implementation of Aggregator.
type MockAggregator struct {
	mock.Mock
}

func (m *MockAggregator) Token(ctx context.Context, symbol string) (jupiter.TokenInfo, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(jupiter.TokenInfo), args.Error(1)
}

func (m *MockAggregator) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (*jupiter.Quote, error) {
	args := m.Called(ctx, inputMint, outputMint, amount)
	quote, _ := args.Get(0).(*jupiter.Quote)
	return quote, args.Error(1)
}

func (m *MockAggregator) SwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (string, error) {
	args := m.Called(ctx, quote, userPublicKey)
	return args.String(0), args.Error(1)
}

// MockWallet is a mock implementation of Wallet.
type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) PublicKey() string { return "WalletPubkey111" }

func (m *MockWallet) TokenBalance(ctx context.Context, mint string) (solana.TokenAmount, error) {
	args := m.Called(ctx, mint)
	return args.Get(0).(solana.TokenAmount), args.Error(1)
}

func (m *MockWallet) LamportBalance(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockWallet) SignAndSend(ctx context.Context, encoded string) (string, error) {
	args := m.Called(ctx, encoded)
	return args.String(0), args.Error(1)
}

// setupStore opens a fresh in-memory journal for each test.
func setupStore(t *testing.T) *store.GormStore {
	db, err := database.NewDatabase(config.Database{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return store.NewGormStore(db)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decEq matches a decimal argument by value rather than representation.
func decEq(s string) any {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func balances(pairs ...string) exchange.Balances {
	out := exchange.Balances{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = exchange.Balance{Asset: pairs[i], Free: dec(pairs[i+1])}
	}
	return out
}
