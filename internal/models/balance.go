package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance holds the quantity of a single currency held by a single
// account. At most one row exists per (account, currency) pair; an absent
// pair means zero.
type AccountBalance struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID string          `gorm:"type:uuid;not null;uniqueIndex:uq_account_currency" json:"account_id"`
	Currency  string          `gorm:"size:10;not null;uniqueIndex:uq_account_currency" json:"currency"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0" json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}
