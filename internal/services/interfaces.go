package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"plata/internal/models"
	"plata/internal/pagination"
)

// UserServicer defines the contract for caller identity resolution.
// Authentication happens upstream; users are keyed by an external ID.
type UserServicer interface {
	GetOrCreateByTelegramID(telegramUserID string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	SetTrackingMode(userID string, mode models.TrackingMode) (*models.User, error)
}

// BalanceEntry is one row of the balances projection.
type BalanceEntry struct {
	AccountID   string              `json:"account_id"`
	AccountName string              `json:"account_name"`
	AccountType models.AccountType  `json:"account_type"`
	Currency    string              `json:"currency"`
	Balance     decimal.Decimal     `json:"balance"`
	Mode        models.TrackingMode `json:"mode"`
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	// GetOrCreateAccount returns the user's account with the given name,
	// creating it with type "other" if absent.
	GetOrCreateAccount(userID, name string) (*models.Account, error)
	CreateAccount(userID, name string, accountType models.AccountType, mode *models.TrackingMode) (*models.Account, error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	GetAccountByName(userID, name string) (*models.Account, error)
	ListAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	// TrackingMode resolves the account's consistency mode: the account
	// override when set, otherwise the user-level default.
	TrackingMode(user *models.User, account *models.Account) models.TrackingMode
	ListBalances(userID string) ([]BalanceEntry, error)
}

// BalanceServicer is the per-(account, currency) balance store. Methods take
// the caller's database handle so mutations join an enclosing transaction.
type BalanceServicer interface {
	GetBalance(db *gorm.DB, accountID, currency string) (decimal.Decimal, error)
	// AdjustBalance applies delta to the (account, currency) balance. Under
	// strict mode a delta that would leave the balance negative is rejected
	// with ErrInsufficientBalance and nothing is written.
	AdjustBalance(db *gorm.DB, accountID, currency string, delta decimal.Decimal, mode models.TrackingMode) (decimal.Decimal, error)
}

// TransactionInput is a structured transaction intent as received from the
// parsing front end. Accounts are referenced by name and created on first use.
type TransactionInput struct {
	Type         models.TransactionType
	Amount       decimal.Decimal
	Currency     string
	AccountFrom  string
	AccountTo    string
	CurrencyTo   string
	AmountTo     *decimal.Decimal
	ExchangeRate *decimal.Decimal
	Description  string
	Date         time.Time
}

// CreateOutcome is the result of submitting an intent: either a committed
// Transaction, or a PendingTransaction when a required rate was unavailable.
type CreateOutcome struct {
	Transaction *models.Transaction
	Pending     *models.PendingTransaction
}

// IsPending reports whether the intent was deferred to the retry queue.
func (o *CreateOutcome) IsPending() bool { return o.Pending != nil }

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate    *time.Time
	ToDate      *time.Time
	Type        *models.TransactionType
	AccountName *string
}

// TransactionUpdateFields are the descriptive fields that may be corrected
// after creation. Corrections never re-apply balance deltas.
type TransactionUpdateFields struct {
	Amount      *decimal.Decimal
	Description *string
	Date        *time.Time
	Currency    *string
}

// TransactionServicer defines the contract for the transaction processor.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID string, input TransactionInput) (*CreateOutcome, error)
	// ResolvePending re-runs a stored intent. It returns fx.ErrUnavailable
	// when the required rate still cannot be resolved, leaving the entry to
	// the retry worker; it never re-enqueues.
	ResolvePending(ctx context.Context, pending *models.PendingTransaction) (*models.Transaction, error)
	ListTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error)
}

// ResolveFunc re-enters the transaction processor with a stored intent.
type ResolveFunc func(ctx context.Context, pending *models.PendingTransaction) (*models.Transaction, error)

// RetryOutcome is the per-entry result of a retry sweep.
type RetryOutcome struct {
	PendingID     string `json:"pending_id"`
	Resolved      bool   `json:"resolved"`
	Exhausted     bool   `json:"exhausted"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// PendingServicer defines the contract for the pending-transaction queue.
type PendingServicer interface {
	Enqueue(pending *models.PendingTransaction) (*models.PendingTransaction, error)
	ListPending(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PendingTransaction], error)
	// RetryAll processes each claimable pending entry independently through
	// resolve. One entry's failure never blocks the others.
	RetryAll(ctx context.Context, resolve ResolveFunc) []RetryOutcome
}
