package models

import (
	"fmt"
	"strings"
	"time"
)

// Action is the side of a journaled trade.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// ParseAction normalizes a webhook action. Anything other than buy or sell is rejected.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionBuy, ActionSell:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// TransactionRecord is one journaled trade action. Rows are append-only and
// removed only by a bulk purge.
type TransactionRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"index;not null" json:"name"`
	Action     Action `gorm:"size:4;not null" json:"action"`
	Timeframe  string `json:"timeframe"`
	TokenPrice Amount `json:"tokenPrice"`
	// UsdtPrice is the USDT spent on a buy or received on a sell.
	UsdtPrice Amount    `json:"usdtPrice"`
	Datetime  time.Time `gorm:"index" json:"datetime"`
	Indicator string    `json:"indicator"`
}

// Validate enforces the record invariants before it is written.
func (r *TransactionRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("transaction name is empty")
	}
	if r.Action != ActionBuy && r.Action != ActionSell {
		return fmt.Errorf("transaction action %q is not buy or sell", r.Action)
	}
	if r.UsdtPrice.IsNegative() {
		return fmt.Errorf("transaction usdtPrice %s is negative", r.UsdtPrice)
	}
	return nil
}
