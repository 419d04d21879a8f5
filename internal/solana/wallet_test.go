package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/exchange"

	sol "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// setupRPCServer answers JSON-RPC calls with the result registered for the method.
func setupRPCServer(t *testing.T, results map[string]string) *Wallet {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected rpc method %s", req.Method)
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)

	key, err := sol.NewRandomPrivateKey()
	require.NoError(t, err)

	wallet, err := NewWallet(config.Solana{RPCEndpoint: server.URL, PrivateKey: key.String()}, zap.NewNop())
	require.NoError(t, err)
	return wallet
}

func TestNewWallet_BadKey(t *testing.T) {
	_, err := NewWallet(config.Solana{RPCEndpoint: "http://localhost:8899", PrivateKey: "not-a-key"}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}

func TestTokenBalance(t *testing.T) {
	account := func(pubkey string) string {
		return `{"pubkey":"` + pubkey + `","account":{"lamports":2039280,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","data":["","base64"],"executable":false,"rentEpoch":0}}`
	}

	t.Run("single account", func(t *testing.T) {
		w := setupRPCServer(t, map[string]string{
			"getTokenAccountsByOwner": `{"context":{"slot":1},"value":[` + account("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM") + `]}`,
			"getTokenAccountBalance":  `{"context":{"slot":1},"value":{"amount":"25123456","decimals":6,"uiAmount":25.123456,"uiAmountString":"25.123456"}}`,
		})

		bal, err := w.TokenBalance(context.Background(), usdtMint)
		require.NoError(t, err)
		assert.Equal(t, uint64(25123456), bal.Raw)
		assert.Equal(t, uint8(6), bal.Decimals)
		assert.True(t, bal.UI().Equal(decimal.RequireFromString("25.123456")))
	})

	t.Run("no account", func(t *testing.T) {
		w := setupRPCServer(t, map[string]string{
			"getTokenAccountsByOwner": `{"context":{"slot":1},"value":[]}`,
		})

		bal, err := w.TokenBalance(context.Background(), usdtMint)
		require.NoError(t, err)
		assert.Zero(t, bal.Raw)
		assert.True(t, bal.UI().IsZero())
	})

	t.Run("bad mint", func(t *testing.T) {
		w := setupRPCServer(t, map[string]string{})

		_, err := w.TokenBalance(context.Background(), "0OIl")
		require.Error(t, err)
		assert.Equal(t, exchange.KindExchange, exchange.KindOf(err))
	})
}

func TestLamportBalance(t *testing.T) {
	w := setupRPCServer(t, map[string]string{
		"getBalance": `{"context":{"slot":1},"value":1500000000}`,
	})

	lamports, err := w.LamportBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1500000000), lamports)
}

func TestSignAndSend_BadPayload(t *testing.T) {
	w := setupRPCServer(t, map[string]string{})

	_, err := w.SignAndSend(context.Background(), "%%%not-base64")
	require.Error(t, err)
	assert.Equal(t, exchange.KindExchange, exchange.KindOf(err))
}

func TestTokenAmountUI(t *testing.T) {
	assert.True(t, TokenAmount{Raw: 1, Decimals: 9}.UI().Equal(decimal.RequireFromString("0.000000001")))
	assert.True(t, TokenAmount{Raw: 42, Decimals: 0}.UI().Equal(decimal.NewFromInt(42)))
}
