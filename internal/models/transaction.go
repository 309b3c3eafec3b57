package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome     TransactionType = "income"
	TransactionTypeExpense    TransactionType = "expense"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeConversion TransactionType = "conversion"
)

// Transaction is an immutable record of one financial event and its balance
// effects. Descriptive fields may be corrected after the fact, but such
// edits never re-apply balance deltas.
type Transaction struct {
	Base
	UserID        string           `gorm:"type:uuid;not null;index" json:"user_id"`
	Type          TransactionType  `gorm:"not null;index" json:"type"`
	AccountFromID *string          `gorm:"type:uuid" json:"account_from_id,omitempty"`
	AccountToID   *string          `gorm:"type:uuid" json:"account_to_id,omitempty"`
	Currency      string           `gorm:"size:10;not null" json:"currency"`
	Amount        decimal.Decimal  `gorm:"type:numeric(20,8);not null" json:"amount"`
	CurrencyTo    *string          `gorm:"size:10" json:"currency_to,omitempty"`
	AmountTo      *decimal.Decimal `gorm:"type:numeric(20,8)" json:"amount_to,omitempty"`
	ExchangeRate  *decimal.Decimal `gorm:"type:numeric(20,8)" json:"exchange_rate,omitempty"`
	Description   string           `gorm:"size:500" json:"description,omitempty"`
	Date          time.Time        `gorm:"not null;index" json:"date"`

	// Relationships
	AccountFrom *Account `gorm:"foreignKey:AccountFromID" json:"account_from,omitempty"`
	AccountTo   *Account `gorm:"foreignKey:AccountToID" json:"account_to,omitempty"`
}
