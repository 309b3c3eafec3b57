package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingStatus tracks the lifecycle of a deferred transaction intent.
type PendingStatus string

const (
	// PendingStatusPending means the intent is waiting for the next retry sweep.
	PendingStatusPending PendingStatus = "pending"
	// PendingStatusProcessing means a worker holds the entry. Claiming an
	// entry before resolving it keeps a second concurrent sweep from
	// double-processing it.
	PendingStatusProcessing PendingStatus = "processing"
)

// PendingTransaction is a transaction intent that could not complete because
// a required exchange rate was unavailable. The retry worker periodically
// re-submits it; the row is deleted once a real Transaction materializes.
type PendingTransaction struct {
	Base
	UserID        string           `gorm:"type:uuid;not null;index" json:"user_id"`
	Type          TransactionType  `gorm:"not null" json:"type"`
	AccountFromID *string          `gorm:"type:uuid" json:"account_from_id,omitempty"`
	AccountToID   *string          `gorm:"type:uuid" json:"account_to_id,omitempty"`
	Currency      string           `gorm:"size:10;not null" json:"currency"`
	Amount        decimal.Decimal  `gorm:"type:numeric(20,8);not null" json:"amount"`
	CurrencyTo    *string          `gorm:"size:10" json:"currency_to,omitempty"`
	AmountTo      *decimal.Decimal `gorm:"type:numeric(20,8)" json:"amount_to,omitempty"`
	ExchangeRate  *decimal.Decimal `gorm:"type:numeric(20,8)" json:"exchange_rate,omitempty"`
	Description   string           `gorm:"size:500" json:"description,omitempty"`
	Date          time.Time        `gorm:"not null" json:"date"`
	Status        PendingStatus    `gorm:"not null;default:'pending';index" json:"status"`
	RetryCount    int              `gorm:"not null;default:0;index" json:"retry_count"`
	LastError     string           `json:"last_error,omitempty"`
	LastAttemptAt *time.Time       `json:"last_attempt_at,omitempty"`

	// Relationships
	AccountFrom *Account `gorm:"foreignKey:AccountFromID" json:"account_from,omitempty"`
	AccountTo   *Account `gorm:"foreignKey:AccountToID" json:"account_to,omitempty"`
}
