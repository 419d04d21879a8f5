package mexc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"signal-relay-go/internal/exchange"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(t *testing.T, handler http.Handler) *RestClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &RestClient{
		client:    resty.New().SetBaseURL(server.URL),
		apiKey:    "test_api_key",
		secretKey: "test_secret_key",
		logger:    zap.NewNop(),                 // Use a no-op logger for tests
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		now:       func() time.Time { return time.UnixMilli(1700000000000) },
	}
}

// verifySignature checks that the signature is the last parameter and matches the rest of the query.
func verifySignature(t *testing.T, r *http.Request) {
	t.Helper()
	raw := r.URL.RawQuery
	idx := strings.LastIndex(raw, "&signature=")
	require.NotEqual(t, -1, idx, "query %q has no trailing signature", raw)

	h := hmac.New(sha256.New, []byte("test_secret_key"))
	h.Write([]byte(raw[:idx]))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), raw[idx+len("&signature="):])
	assert.Equal(t, "test_api_key", r.Header.Get("X-MEXC-APIKEY"))
	assert.Equal(t, "1700000000000", r.URL.Query().Get("timestamp"))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestFetchBalances(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		rc := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/account", r.URL.Path)
			verifySignature(t, r)
			writeJSON(w, http.StatusOK, `{"balances":[{"asset":"USDT","free":"25.5","locked":"0"},{"asset":"GROK","free":"100","locked":"1"}]}`)
		}))

		balances, err := rc.FetchBalances(context.Background())
		require.NoError(t, err)
		assert.True(t, balances.Free("USDT").Equal(decimal.RequireFromString("25.5")))
		assert.True(t, balances.Free("GROK").Equal(decimal.NewFromInt(100)))
	})

	t.Run("AuthenticationError", func(t *testing.T) {
		rc := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"code":700002,"msg":"Signature for this request is not valid."}`)
		}))

		_, err := rc.FetchBalances(context.Background())
		require.Error(t, err)
		assert.Equal(t, exchange.KindAuthentication, exchange.KindOf(err))
		assert.Contains(t, err.Error(), "failed to get account")
		assert.Contains(t, err.Error(), "Signature for this request is not valid.")
	})
}

func TestDoRequest_NoRetry(t *testing.T) {
	var calls int32
	rc := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusServiceUnavailable, `{"code":-1,"msg":"busy"}`)
	}))

	_, err := rc.LastPrice(context.Background(), "GROKUSDT")
	require.Error(t, err)
	assert.Equal(t, exchange.KindNotAvailable, exchange.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRequest_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	rc := setupTestServer(t, http.NotFoundHandler())
	rc.client.SetBaseURL(server.URL)
	server.Close()

	_, err := rc.LastPrice(context.Background(), "GROKUSDT")
	require.Error(t, err)
	assert.Equal(t, exchange.KindNetwork, exchange.KindOf(err))
}

func TestLastPrice(t *testing.T) {
	rc := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/price", r.URL.Path)
		assert.Equal(t, "GROKUSDT", r.URL.Query().Get("symbol"))
		writeJSON(w, http.StatusOK, `{"symbol":"GROKUSDT","price":"0.01234"}`)
	}))

	price, err := rc.LastPrice(context.Background(), "GROKUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.01234")))
}

func TestCancelOpenOrders(t *testing.T) {
	var deleted int32
	rc := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openOrders", r.URL.Path)
		verifySignature(t, r)
		if r.Method == http.MethodDelete {
			atomic.AddInt32(&deleted, 1)
			writeJSON(w, http.StatusOK, `[]`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"symbol":"GROKUSDT","orderId":"C02__1"}]`)
	}))

	n, err := rc.CancelOpenOrders(context.Background(), "GROKUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), atomic.LoadInt32(&deleted))
}

func TestCreateOrder(t *testing.T) {
	testCases := []struct {
		name     string
		side     string
		param    string
		value    string
		place    func(rc *RestClient) (*exchange.Order, error)
		response string
	}{
		{
			name:  "market buy by quote",
			side:  OrderSideBuy,
			param: "quoteOrderQty",
			value: "25.5",
			place: func(rc *RestClient) (*exchange.Order, error) {
				return rc.MarketBuyQuote(context.Background(), "GROKUSDT", decimal.RequireFromString("25.5"))
			},
			response: `{"symbol":"GROKUSDT","orderId":"C02__9","price":"","origQty":"","type":"MARKET","side":"BUY","transactTime":1700000000000}`,
		},
		{
			name:  "market sell",
			side:  OrderSideSell,
			param: "quantity",
			value: "100",
			place: func(rc *RestClient) (*exchange.Order, error) {
				return rc.MarketSell(context.Background(), "GROKUSDT", decimal.NewFromInt(100))
			},
			response: `{"symbol":"GROKUSDT","orderId":"C02__10","type":"MARKET","side":"SELL"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rc := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/order", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				verifySignature(t, r)
				q := r.URL.Query()
				assert.Equal(t, tc.side, q.Get("side"))
				assert.Equal(t, OrderTypeMarket, q.Get("type"))
				assert.Equal(t, tc.value, q.Get(tc.param))
				writeJSON(w, http.StatusOK, tc.response)
			}))

			order, err := tc.place(rc)
			require.NoError(t, err)
			assert.NotEmpty(t, order.ID)
			assert.Empty(t, order.Fills)
			assert.True(t, order.ExecutedQty.IsZero())
		})
	}
}

func TestCreateOrder_ExchangeError(t *testing.T) {
	rc := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"code":30004,"msg":"Insufficient position"}`)
	}))

	_, err := rc.MarketSell(context.Background(), "GROKUSDT", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Equal(t, exchange.KindExchange, exchange.KindOf(err))
	assert.Contains(t, err.Error(), "failed to create order")
}
