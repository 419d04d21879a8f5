package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/lock"
	"signal-relay-go/internal/logger"
	"signal-relay-go/internal/models"
	"signal-relay-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvocationHeader carries the invocation ID back to the caller.
const InvocationHeader = "X-Invocation-Id"

// APIServer receives trading signals over HTTP.
type APIServer struct {
	server  *http.Server
	mux     *http.ServeMux
	locker  lock.Locker
	timeout time.Duration
	logger  *zap.Logger
}

// NewAPIServer creates a new APIServer. Routes are added with Handle and HandleJournal.
func NewAPIServer(cfg config.Trader, locker lock.Locker, logger *zap.Logger) *APIServer {
	if locker == nil {
		locker = lock.Noop{}
	}
	mux := http.NewServeMux()
	s := &APIServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		mux:     mux,
		locker:  locker,
		timeout: cfg.RequestTimeout,
		logger:  logger.Named("api-server"),
	}
	mux.HandleFunc("/health", s.healthHandler)
	return s
}

// Handle routes POST path to exec. A non-nil configErr fails every request
// on the route before anything else happens.
func (s *APIServer) Handle(path string, exec Executor, configErr error) {
	venue := path
	if exec != nil {
		venue = exec.Venue()
	}
	s.mux.HandleFunc(path, s.tradeHandler(venue, exec, configErr))
}

// HandleJournal routes POST path to the journal-only webhook.
func (s *APIServer) HandleJournal(path string, st store.Store, configErr error) {
	s.mux.HandleFunc(path, s.journalHandler(st, configErr))
}

// Handler exposes the routes, mostly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) tradeHandler(venue string, exec Executor, configErr error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, s.logger, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}
		start := time.Now()
		l, invocationID := logger.ForInvocation(s.logger, venue)
		w.Header().Set(InvocationHeader, invocationID)

		if configErr != nil {
			s.fail(w, l, configErr)
			return
		}

		var sig Signal
		if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
			s.fail(w, l, fmt.Errorf("%w: decode body: %v", ErrValidation, err))
			return
		}
		if err := sig.Validate(); err != nil {
			s.fail(w, l, err)
			return
		}
		l = l.With(zap.String("name", sig.Name))
		l.Info("Signal received",
			zap.String("action", sig.Action),
			zap.String("timeframe", sig.Timeframe),
			zap.String("indicator", sig.Indicator),
		)

		ctx := r.Context()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		release, err := s.locker.Acquire(ctx, sig.Name)
		if err != nil {
			s.fail(w, l, err)
			return
		}
		defer release()

		result, err := exec.Execute(ctx, l, sig)
		if err != nil {
			s.fail(w, l, err)
			return
		}
		l.Info("Signal handled", zap.Duration("elapsed", time.Since(start)), zap.String("txid", result.TxID))
		writeJSON(w, l, http.StatusOK, result)
	}
}

func (s *APIServer) journalHandler(st store.Store, configErr error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, s.logger, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
			return
		}
		l, invocationID := logger.ForInvocation(s.logger, "webhook")
		w.Header().Set(InvocationHeader, invocationID)

		if configErr != nil {
			s.fail(w, l, configErr)
			return
		}

		var sig Signal
		if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
			l.Error("Failed to decode webhook", zap.Error(err))
			writeJSON(w, l, http.StatusInternalServerError, map[string]string{"error": MessageJournal})
			return
		}

		action, err := models.ParseAction(sig.Action)
		if err != nil {
			l.Error("Failed to handle webhook", zap.String("name", sig.Name), zap.Error(err))
			writeJSON(w, l, http.StatusInternalServerError, map[string]string{"error": MessageJournal})
			return
		}
		rec := sig.record(action, nullToZero(sig.TokenPrice), nullToZero(sig.UsdtPrice))
		rec.Name = strings.TrimSpace(rec.Name)
		if err := st.Append(r.Context(), rec); err != nil {
			l.Error("Failed to handle webhook", zap.String("name", rec.Name), zap.Error(err))
			writeJSON(w, l, http.StatusInternalServerError, map[string]string{"error": MessageJournal})
			return
		}
		l.Info("Webhook journaled", zap.String("name", rec.Name), zap.Uint("id", rec.ID))
		writeJSON(w, l, http.StatusOK, map[string]bool{"received": true})
	}
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// fail logs err with its category and answers 500 with the category message.
func (s *APIServer) fail(w http.ResponseWriter, l *zap.Logger, err error) {
	l.Error("Signal failed", zap.String("category", Category(err)), zap.Error(err))
	writeJSON(w, l, http.StatusInternalServerError, map[string]string{"error": ErrorMessage(err)})
}

func writeJSON(w http.ResponseWriter, l *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		l.Error("Failed to write response", zap.Error(err))
	}
}

func nullToZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
