package models

import (
	"time"
)

// AllocationRecord is the USDT earmarked for an instrument's next buy.
// There is at most one row per name.
type AllocationRecord struct {
	Name       string    `gorm:"primaryKey" json:"name"`
	UsdtAmount Amount    `gorm:"not null" json:"usdtAmount"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
