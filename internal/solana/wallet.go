// Package solana holds the trading wallet used for Jupiter swaps.
package solana

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/exchange"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VenueName identifies the Solana RPC node in logs and errors.
const VenueName = "solana"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// SOLMint is the wrapped SOL mint Jupiter uses for native SOL.
var SOLMint = sol.SolMint.String()

// TokenAmount is a token balance in base units together with its decimals.
type TokenAmount struct {
	Raw      uint64
	Decimals uint8
}

// UI returns the amount in whole tokens.
func (a TokenAmount) UI() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(a.Raw), -int32(a.Decimals))
}

// Wallet signs and submits swap transactions for one keypair.
type Wallet struct {
	rpc            *rpc.Client
	key            sol.PrivateKey
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger
}

// NewWallet parses the base58 private key and connects to the RPC endpoint.
func NewWallet(cfg config.Solana, logger *zap.Logger) (*Wallet, error) {
	key, err := sol.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: solana.private_key is not a base58 keypair", config.ErrConfiguration)
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Wallet{
		rpc:            rpc.New(cfg.RPCEndpoint),
		key:            key,
		confirmTimeout: timeout,
		pollInterval:   2 * time.Second,
		logger:         logger,
	}, nil
}

// PublicKey is the base58 wallet address.
func (w *Wallet) PublicKey() string {
	return w.key.PublicKey().String()
}

// TokenBalance sums every token account of the wallet holding mint.
// A wallet without such an account has a zero balance.
func (w *Wallet) TokenBalance(ctx context.Context, mint string) (TokenAmount, error) {
	mintKey, err := sol.PublicKeyFromBase58(mint)
	if err != nil {
		return TokenAmount{}, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("bad mint %q: %w", mint, err))
	}

	accounts, err := w.rpc.GetTokenAccountsByOwner(ctx, w.key.PublicKey(),
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Encoding: sol.EncodingBase64},
	)
	if err != nil {
		return TokenAmount{}, exchange.NewError(VenueName, exchange.ClassifyTransport(err), fmt.Errorf("get token accounts for %s: %w", mint, err))
	}

	var total TokenAmount
	for _, acct := range accounts.Value {
		bal, err := w.rpc.GetTokenAccountBalance(ctx, acct.Pubkey, rpc.CommitmentConfirmed)
		if err != nil {
			return TokenAmount{}, exchange.NewError(VenueName, exchange.ClassifyTransport(err), fmt.Errorf("get token balance of %s: %w", acct.Pubkey, err))
		}
		if bal.Value == nil {
			continue
		}
		raw, err := strconv.ParseUint(bal.Value.Amount, 10, 64)
		if err != nil {
			return TokenAmount{}, exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("bad token amount %q: %w", bal.Value.Amount, err))
		}
		total.Raw += raw
		total.Decimals = bal.Value.Decimals
	}
	if len(accounts.Value) == 0 {
		w.logger.Info("No token account found in the wallet", zap.String("mint", mint))
	}
	return total, nil
}

// LamportBalance returns the native SOL balance in lamports.
func (w *Wallet) LamportBalance(ctx context.Context) (uint64, error) {
	out, err := w.rpc.GetBalance(ctx, w.key.PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		return 0, exchange.NewError(VenueName, exchange.ClassifyTransport(err), fmt.Errorf("get balance: %w", err))
	}
	return out.Value, nil
}

// SignAndSend decodes a base64 transaction, signs it with the wallet key,
// submits it and waits for confirmation. It returns the signature.
func (w *Wallet) SignAndSend(ctx context.Context, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("decode swap transaction: %w", err))
	}
	tx, err := sol.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("deserialize swap transaction: %w", err))
	}

	owner := w.key.PublicKey()
	if _, err := tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if key.Equals(owner) {
			return &w.key
		}
		return nil
	}); err != nil {
		return "", exchange.NewError(VenueName, exchange.KindAuthentication, fmt.Errorf("sign swap transaction: %w", err))
	}

	maxRetries := uint(2)
	sig, err := w.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
		MaxRetries:    &maxRetries,
	})
	if err != nil {
		return "", exchange.NewError(VenueName, exchange.ClassifyTransport(err), fmt.Errorf("send transaction: %w", err))
	}
	w.logger.Info("Transaction sent", zap.String("signature", sig.String()), zap.String("explorer", "https://solscan.io/tx/"+sig.String()))

	if err := w.confirm(ctx, sig); err != nil {
		return sig.String(), err
	}
	return sig.String(), nil
}

// confirm polls the signature status until it is confirmed, failed or timed out.
func (w *Wallet) confirm(ctx context.Context, sig sol.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, w.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		out, err := w.rpc.GetSignatureStatuses(ctx, false, sig)
		if err == nil && out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return exchange.NewError(VenueName, exchange.KindExchange, fmt.Errorf("transaction %s failed: %v", sig, status.Err))
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return exchange.NewError(VenueName, exchange.KindNetwork, fmt.Errorf("transaction %s not confirmed: %w", sig, ctx.Err()))
		case <-ticker.C:
		}
	}
}
