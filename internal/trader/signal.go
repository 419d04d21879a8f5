package trader

import (
	"errors"
	"fmt"
	"strings"

	"signal-relay-go/internal/models"

	"github.com/shopspring/decimal"
)

// ErrValidation is matched by every error reporting a malformed signal.
var ErrValidation = errors.New("validation error")

// Signal is the JSON body posted by the alerting system.
type Signal struct {
	Name      string `json:"name"`
	Action    string `json:"action"`
	Timeframe string `json:"timeframe"`
	Indicator string `json:"indicator"`

	// Only read by the journal-only webhook.
	TokenPrice decimal.NullDecimal `json:"tokenprice"`
	UsdtPrice  decimal.NullDecimal `json:"usdtprice"`
}

// Validate trims the name in place and reports every missing field.
// The name keeps its case; it is the allocation key as posted. The action
// is left as posted and only an exact "buy" or "sell" trades.
func (s *Signal) Validate() error {
	s.Name = strings.TrimSpace(s.Name)

	var missing []string
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Action) == "" {
		missing = append(missing, "action")
	}
	if strings.TrimSpace(s.Timeframe) == "" {
		missing = append(missing, "timeframe")
	}
	if strings.TrimSpace(s.Indicator) == "" {
		missing = append(missing, "indicator")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// record builds the journal row for an executed order.
func (s *Signal) record(action models.Action, tokenPrice, usdtPrice decimal.Decimal) *models.TransactionRecord {
	return &models.TransactionRecord{
		Name:       s.Name,
		Action:     action,
		Timeframe:  s.Timeframe,
		TokenPrice: models.NewAmount(tokenPrice),
		UsdtPrice:  models.NewAmount(usdtPrice),
		Indicator:  s.Indicator,
	}
}
