package trader

import (
	"context"

	"signal-relay-go/internal/models"
	"signal-relay-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Messages returned to the alerting system on success.
const (
	MessageReceived = "Webhook received successfully!"
	MessageExecuted = "Trade executed successfully"
)

// Result is the success body of a trade webhook.
type Result struct {
	Message string `json:"message"`
	TxID    string `json:"txid,omitempty"`
}

// Executor turns a validated signal into venue orders and journal rows.
type Executor interface {
	// Venue names the executor in logs.
	Venue() string

	// Execute runs one signal. Insufficient balance and unknown actions are not errors.
	Execute(ctx context.Context, l *zap.Logger, sig Signal) (Result, error)
}

// journal appends rec and only logs a failure, since the order is already placed.
func journal(ctx context.Context, l *zap.Logger, st store.Store, rec *models.TransactionRecord) {
	if err := st.Append(ctx, rec); err != nil {
		l.Error("Failed to journal transaction",
			zap.String("action", string(rec.Action)),
			zap.Stringer("usdt_price", rec.UsdtPrice),
			zap.Error(err),
		)
		return
	}
	l.Info("Transaction journaled",
		zap.Uint("id", rec.ID),
		zap.String("action", string(rec.Action)),
		zap.Stringer("token_price", rec.TokenPrice),
		zap.Stringer("usdt_price", rec.UsdtPrice),
	)
}

// trackAllocation carries sale proceeds into the next buy of name.
func trackAllocation(ctx context.Context, l *zap.Logger, st store.Store, name string, proceeds decimal.Decimal) {
	created, err := st.UpsertAllocation(ctx, name, proceeds)
	if err != nil {
		l.Error("Failed to update allocation", zap.Stringer("usdt_amount", proceeds), zap.Error(err))
		return
	}
	l.Info("Allocation updated", zap.Stringer("usdt_amount", proceeds), zap.Bool("created", created))
}
