package models

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeBank   AccountType = "bank"
	AccountTypeWallet AccountType = "wallet"
	AccountTypeCash   AccountType = "cash"
	AccountTypeOther  AccountType = "other"
)

// Account represents a named holder of per-currency balances. Accounts are
// created lazily on first reference by name and are never deleted here.
type Account struct {
	Base
	UserID string      `gorm:"not null;uniqueIndex:uq_user_account_name" json:"user_id"`
	Name   string      `gorm:"not null;uniqueIndex:uq_user_account_name" json:"name"`
	Type   AccountType `gorm:"not null;default:'other'" json:"type"`

	// Mode overrides the user-level tracking mode for this account.
	// Nil means inherit from the user.
	Mode *TrackingMode `gorm:"size:10" json:"mode,omitempty"`

	// Relationships
	Balances []AccountBalance `gorm:"foreignKey:AccountID" json:"balances,omitempty"`
}
