package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is an append-only cache of previously resolved rates.
// Pair is formatted as "BASE/QUOTE", e.g. "USDT/ARS".
type ExchangeRate struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Pair      string          `gorm:"size:21;not null;index" json:"pair"`
	Value     decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"value"`
	Source    string          `gorm:"size:50;not null" json:"source"`
	FetchedAt time.Time       `gorm:"not null;index" json:"fetched_at"`
}
