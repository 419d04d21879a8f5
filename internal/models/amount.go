package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Amount is a decimal money column. sqlite stores it as text because a
// NUMERIC column there is coerced to an 8-byte float.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d for storage.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (Amount) GormDataType() string {
	return "numeric"
}

func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric"
}
