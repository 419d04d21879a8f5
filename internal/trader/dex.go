package trader

import (
	"context"
	"fmt"
	"strings"

	"signal-relay-go/internal/jupiter"
	"signal-relay-go/internal/models"
	"signal-relay-go/internal/sizing"
	"signal-relay-go/internal/solana"
	"signal-relay-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// usdtDecimals is the precision of the USDT mint on Solana.
	usdtDecimals = 6
	// solFeeReserve is left in the wallet on a SOL sell to pay transaction fees.
	solFeeReserve = solana.LamportsPerSOL / 10
)

// Aggregator is the Jupiter API surface the DEX executor needs.
type Aggregator interface {
	Token(ctx context.Context, symbol string) (jupiter.TokenInfo, error)
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (*jupiter.Quote, error)
	SwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (string, error)
}

// Wallet is the Solana wallet surface the DEX executor needs.
type Wallet interface {
	PublicKey() string
	TokenBalance(ctx context.Context, mint string) (solana.TokenAmount, error)
	LamportBalance(ctx context.Context) (uint64, error)
	SignAndSend(ctx context.Context, encoded string) (string, error)
}

var (
	_ Aggregator = (*jupiter.Client)(nil)
	_ Wallet     = (*solana.Wallet)(nil)
)

// DEXExecutor swaps against USDT through Jupiter with a single Solana wallet.
type DEXExecutor struct {
	aggregator Aggregator
	wallet     Wallet
	store      store.Store
	usdtMint   string
}

// ensure DEXExecutor implements the interface
var _ Executor = (*DEXExecutor)(nil)

// NewDEXExecutor creates the Jupiter executor. usdtMint is the quote token.
func NewDEXExecutor(aggregator Aggregator, wallet Wallet, st store.Store, usdtMint string) *DEXExecutor {
	return &DEXExecutor{aggregator: aggregator, wallet: wallet, store: st, usdtMint: usdtMint}
}

// Venue returns the aggregator name.
func (d *DEXExecutor) Venue() string {
	return jupiter.VenueName
}

// Execute resolves the token mint and swaps into or out of USDT.
func (d *DEXExecutor) Execute(ctx context.Context, l *zap.Logger, sig Signal) (Result, error) {
	info, err := d.aggregator.Token(ctx, sig.Name)
	if err != nil {
		return Result{}, fmt.Errorf("resolve token %s: %w", sig.Name, err)
	}
	l = l.With(zap.String("mint", info.Mint), zap.String("action", sig.Action))

	var txid string
	switch sig.Action {
	case string(models.ActionBuy):
		txid, err = d.buy(ctx, l, sig, info)
	case string(models.ActionSell):
		txid, err = d.sell(ctx, l, sig, info)
	default:
		l.Warn("Insufficient balance or invalid action")
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Message: MessageExecuted, TxID: txid}, nil
}

func (d *DEXExecutor) buy(ctx context.Context, l *zap.Logger, sig Signal, info jupiter.TokenInfo) (string, error) {
	usdt, err := d.wallet.TokenBalance(ctx, d.usdtMint)
	if err != nil {
		return "", fmt.Errorf("usdt balance: %w", err)
	}
	if usdt.Raw == 0 {
		l.Warn("Insufficient balance or invalid action", zap.String("usdt_free", "0"))
		return "", nil
	}

	size := sizing.Candidate(usdt.UI(), d.allocation(ctx, l, sig.Name))
	amount, err := toBaseUnits(size, usdt.Decimals)
	if err != nil {
		return "", fmt.Errorf("buy size: %w", err)
	}
	if amount == 0 {
		l.Warn("Buy size rounds to zero base units", zap.Stringer("size", size))
		return "", nil
	}

	l.Info("Executing swap", zap.String("from", d.usdtMint), zap.Uint64("amount", amount))
	quote, txid, err := d.swap(ctx, l, d.usdtMint, info.Mint, amount)
	if err != nil {
		return txid, err
	}

	journal(ctx, l, d.store, sig.record(models.ActionBuy, info.Price, fromBaseUnits(quote.InAmount, usdt.Decimals)))
	return txid, nil
}

func (d *DEXExecutor) sell(ctx context.Context, l *zap.Logger, sig Signal, info jupiter.TokenInfo) (string, error) {
	var amount uint64
	if strings.EqualFold(sig.Name, "SOL") {
		lamports, err := d.wallet.LamportBalance(ctx)
		if err != nil {
			return "", fmt.Errorf("sol balance: %w", err)
		}
		if lamports > solFeeReserve {
			amount = lamports - solFeeReserve
		}
	} else {
		bal, err := d.wallet.TokenBalance(ctx, info.Mint)
		if err != nil {
			return "", fmt.Errorf("%s balance: %w", sig.Name, err)
		}
		amount = bal.Raw
	}
	if amount == 0 {
		l.Warn("Insufficient balance or invalid action", zap.String("token_free", "0"))
		return "", nil
	}

	l.Info("Executing swap", zap.String("to", d.usdtMint), zap.Uint64("amount", amount))
	quote, txid, err := d.swap(ctx, l, info.Mint, d.usdtMint, amount)
	if err != nil {
		return txid, err
	}

	proceeds := fromBaseUnits(quote.OutAmount, usdtDecimals)
	journal(ctx, l, d.store, sig.record(models.ActionSell, info.Price, proceeds))
	trackAllocation(ctx, l, d.store, sig.Name, proceeds)
	return txid, nil
}

// swap quotes, builds, signs and confirms one Jupiter swap.
func (d *DEXExecutor) swap(ctx context.Context, l *zap.Logger, inputMint, outputMint string, amount uint64) (*jupiter.Quote, string, error) {
	quote, err := d.aggregator.Quote(ctx, inputMint, outputMint, amount)
	if err != nil {
		return nil, "", fmt.Errorf("quote: %w", err)
	}
	tx, err := d.aggregator.SwapTransaction(ctx, quote, d.wallet.PublicKey())
	if err != nil {
		return nil, "", fmt.Errorf("swap transaction: %w", err)
	}
	txid, err := d.wallet.SignAndSend(ctx, tx)
	if err != nil {
		return nil, txid, fmt.Errorf("send swap: %w", err)
	}
	l.Info("Swap confirmed",
		zap.String("txid", txid),
		zap.Uint64("in_amount", quote.InAmount),
		zap.Uint64("out_amount", quote.OutAmount),
	)
	return quote, txid, nil
}

// allocation returns the stored allocation for name, or nil when absent or unreadable.
func (d *DEXExecutor) allocation(ctx context.Context, l *zap.Logger, name string) *decimal.Decimal {
	rec, err := d.store.GetAllocation(ctx, name)
	if err != nil {
		l.Warn("Allocation lookup failed, spending the wallet balance", zap.Error(err))
		return nil
	}
	if rec == nil {
		return nil
	}
	amount := rec.UsdtAmount.Decimal
	return &amount
}
