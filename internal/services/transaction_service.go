package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "plata/internal/errors"
	"plata/internal/fx"
	"plata/internal/metrics"
	"plata/internal/models"
	"plata/internal/pagination"
)

// RateResolver is the slice of the fx service the processor depends on.
type RateResolver interface {
	GetRate(ctx context.Context, base, quote string) (*fx.Rate, error)
}

// applyFunc applies the balance effects of one transaction shape inside the
// caller's database transaction.
type applyFunc func(tx *gorm.DB, r *resolvedIntent) error

// transactionService validates intents, dispatches them to a type-specific
// handler, and records the resulting transaction atomically with its balance
// mutations. Rate misses route the intent to the pending queue.
type transactionService struct {
	db       *gorm.DB
	users    UserServicer
	accounts AccountServicer
	balances BalanceServicer
	rates    RateResolver
	pending  PendingServicer

	apply map[models.TransactionType]applyFunc
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(
	db *gorm.DB,
	users UserServicer,
	accounts AccountServicer,
	balances BalanceServicer,
	rates RateResolver,
	pending PendingServicer,
) TransactionServicer {
	s := &transactionService{
		db:       db,
		users:    users,
		accounts: accounts,
		balances: balances,
		rates:    rates,
		pending:  pending,
	}
	s.apply = map[models.TransactionType]applyFunc{
		models.TransactionTypeIncome:     s.applyIncome,
		models.TransactionTypeExpense:    s.applyExpense,
		models.TransactionTypeTransfer:   s.applyTransfer,
		models.TransactionTypeConversion: s.applyConversion,
	}
	return s
}

// resolvedIntent is a validated intent with accounts materialized and, once
// rate resolution ran, the destination amount fixed.
type resolvedIntent struct {
	user         *models.User
	typ          models.TransactionType
	amount       decimal.Decimal
	currency     string
	accountFrom  *models.Account
	accountTo    *models.Account
	currencyTo   string
	amountTo     *decimal.Decimal
	exchangeRate *decimal.Decimal
	description  string
	date         time.Time
}

// CreateTransaction validates an intent, resolves any missing exchange rate,
// applies all balance mutations and persists the transaction as one atomic
// unit. When a required rate is unavailable the intent is queued instead and
// a pending outcome is returned; that is not an error.
func (s *transactionService) CreateTransaction(ctx context.Context, userID string, input TransactionInput) (*CreateOutcome, error) {
	if err := validateInput(&input); err != nil {
		reject(err)
		return nil, err
	}

	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	r, err := s.resolveAccounts(user, input)
	if err != nil {
		reject(err)
		return nil, err
	}

	if err := s.resolveRate(ctx, r); err != nil {
		if errors.Is(err, fx.ErrUnavailable) {
			return s.park(r)
		}
		return nil, err
	}

	transaction, err := s.commit(r)
	if err != nil {
		reject(err)
		return nil, err
	}
	return &CreateOutcome{Transaction: transaction}, nil
}

// ResolvePending re-runs a stored intent. Unlike CreateTransaction it never
// re-enqueues: a still-missing rate is returned as fx.ErrUnavailable so the
// retry worker can update the existing entry.
func (s *transactionService) ResolvePending(ctx context.Context, pending *models.PendingTransaction) (*models.Transaction, error) {
	user, err := s.users.GetUserByID(pending.UserID)
	if err != nil {
		return nil, err
	}

	r := &resolvedIntent{
		user:         user,
		typ:          pending.Type,
		amount:       pending.Amount,
		currency:     pending.Currency,
		amountTo:     pending.AmountTo,
		exchangeRate: pending.ExchangeRate,
		description:  pending.Description,
		date:         pending.Date,
	}
	if pending.CurrencyTo != nil {
		r.currencyTo = *pending.CurrencyTo
	}
	if pending.AccountFromID != nil {
		r.accountFrom, err = s.accounts.GetAccountByID(pending.UserID, *pending.AccountFromID)
		if err != nil {
			return nil, err
		}
	}
	if pending.AccountToID != nil {
		r.accountTo, err = s.accounts.GetAccountByID(pending.UserID, *pending.AccountToID)
		if err != nil {
			return nil, err
		}
	}
	if r.typ == models.TransactionTypeConversion && r.accountTo == nil {
		r.accountTo = r.accountFrom
	}

	if err := s.resolveRate(ctx, r); err != nil {
		return nil, err
	}
	return s.commit(r)
}

// resolveAccounts materializes the accounts an intent names, creating them
// transparently, and checks the type-specific required fields.
func (s *transactionService) resolveAccounts(user *models.User, input TransactionInput) (*resolvedIntent, error) {
	r := &resolvedIntent{
		user:         user,
		typ:          input.Type,
		amount:       input.Amount,
		currency:     models.NormalizeCurrency(input.Currency),
		currencyTo:   models.NormalizeCurrency(input.CurrencyTo),
		amountTo:     input.AmountTo,
		exchangeRate: input.ExchangeRate,
		description:  input.Description,
		date:         input.Date,
	}

	if r.date.IsZero() {
		// Noon UTC keeps "today" stable across timezone boundaries.
		now := time.Now().UTC()
		r.date = time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.UTC)
	}

	var err error
	if input.AccountFrom != "" {
		if r.accountFrom, err = s.accounts.GetOrCreateAccount(user.ID, input.AccountFrom); err != nil {
			return nil, err
		}
	}
	if input.AccountTo != "" {
		if r.accountTo, err = s.accounts.GetOrCreateAccount(user.ID, input.AccountTo); err != nil {
			return nil, err
		}
	}

	switch r.typ {
	case models.TransactionTypeIncome:
		if r.accountTo == nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "income requires a destination account")
		}
	case models.TransactionTypeExpense:
		if r.accountFrom == nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "expense requires a source account")
		}
	case models.TransactionTypeTransfer:
		if r.accountFrom == nil || r.accountTo == nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transfer requires source and destination accounts")
		}
		destCurrency := r.currencyTo
		if destCurrency == "" {
			destCurrency = r.currency
		}
		if r.accountFrom.ID == r.accountTo.ID && destCurrency == r.currency {
			return nil, apperrors.ErrSameAccountTransfer
		}
	case models.TransactionTypeConversion:
		if r.accountFrom == nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "conversion requires a source account")
		}
		if r.currencyTo == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "conversion requires a destination currency")
		}
		if r.currencyTo == r.currency {
			return nil, apperrors.ErrSameCurrencyConversion
		}
		if r.accountTo == nil {
			// In-place currency swap within the source account.
			r.accountTo = r.accountFrom
		}
	}

	return r, nil
}

// needsRate reports whether the intent still requires an exchange rate to
// fix its destination amount.
func (r *resolvedIntent) needsRate() bool {
	if r.amountTo != nil {
		return false
	}
	switch r.typ {
	case models.TransactionTypeConversion:
		return true
	case models.TransactionTypeTransfer:
		return r.currencyTo != "" && r.currencyTo != r.currency
	default:
		return false
	}
}

// resolveRate fixes the destination amount of a conversion or cross-currency
// transfer, fetching a rate when none was supplied. Network access happens
// here, before the database transaction opens.
func (s *transactionService) resolveRate(ctx context.Context, r *resolvedIntent) error {
	if !r.needsRate() {
		return nil
	}

	if r.exchangeRate == nil {
		rate, err := s.rates.GetRate(ctx, r.currency, r.currencyTo)
		if err != nil {
			if errors.Is(err, fx.ErrUnavailable) {
				return err
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		r.exchangeRate = &rate.Value
	}

	amountTo := r.amount.Mul(*r.exchangeRate)
	r.amountTo = &amountTo
	return nil
}

// park queues the intent for asynchronous completion and returns the
// pending outcome.
func (s *transactionService) park(r *resolvedIntent) (*CreateOutcome, error) {
	pending := &models.PendingTransaction{
		UserID:       r.user.ID,
		Type:         r.typ,
		Currency:     r.currency,
		Amount:       r.amount,
		AmountTo:     r.amountTo,
		ExchangeRate: r.exchangeRate,
		Description:  r.description,
		Date:         r.date,
		Status:       models.PendingStatusPending,
		LastError:    fmt.Sprintf("exchange rate unavailable for %s/%s", r.currency, r.currencyTo),
	}
	if r.accountFrom != nil {
		pending.AccountFromID = &r.accountFrom.ID
	}
	if r.accountTo != nil {
		pending.AccountToID = &r.accountTo.ID
	}
	if r.currencyTo != "" {
		pending.CurrencyTo = &r.currencyTo
	}

	queued, err := s.pending.Enqueue(pending)
	if err != nil {
		return nil, err
	}
	metrics.PendingEnqueuedTotal.Inc()
	return &CreateOutcome{Pending: queued}, nil
}

// commit applies the intent's balance effects and persists the transaction
// row as one atomic unit; either everything lands or nothing does.
func (s *transactionService) commit(r *resolvedIntent) (*models.Transaction, error) {
	var result *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.apply[r.typ](tx, r); err != nil {
			return err
		}

		record := r.record()
		if err := tx.Create(record).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransactionsCreatedTotal.WithLabelValues(string(r.typ)).Inc()
	return result, nil
}

// record builds the persisted transaction row. Transfers store destination
// currency and amount only when they differ from the source side.
func (r *resolvedIntent) record() *models.Transaction {
	record := &models.Transaction{
		UserID:       r.user.ID,
		Type:         r.typ,
		Currency:     r.currency,
		Amount:       r.amount,
		ExchangeRate: r.exchangeRate,
		Description:  r.description,
		Date:         r.date,
	}
	if r.accountFrom != nil {
		record.AccountFromID = &r.accountFrom.ID
	}
	if r.accountTo != nil {
		record.AccountToID = &r.accountTo.ID
	}

	switch r.typ {
	case models.TransactionTypeConversion:
		record.CurrencyTo = &r.currencyTo
		record.AmountTo = r.amountTo
	case models.TransactionTypeTransfer:
		if r.currencyTo != "" && r.currencyTo != r.currency {
			record.CurrencyTo = &r.currencyTo
		}
		if r.amountTo != nil && !r.amountTo.Equal(r.amount) {
			record.AmountTo = r.amountTo
		}
	}
	return record
}

func (s *transactionService) applyIncome(tx *gorm.DB, r *resolvedIntent) error {
	mode := s.accounts.TrackingMode(r.user, r.accountTo)
	_, err := s.balances.AdjustBalance(tx, r.accountTo.ID, r.currency, r.amount, mode)
	return err
}

func (s *transactionService) applyExpense(tx *gorm.DB, r *resolvedIntent) error {
	mode := s.accounts.TrackingMode(r.user, r.accountFrom)
	_, err := s.balances.AdjustBalance(tx, r.accountFrom.ID, r.currency, r.amount.Neg(), mode)
	return err
}

func (s *transactionService) applyTransfer(tx *gorm.DB, r *resolvedIntent) error {
	destCurrency := r.currencyTo
	if destCurrency == "" {
		destCurrency = r.currency
	}
	destAmount := r.amount
	if r.amountTo != nil {
		destAmount = *r.amountTo
	}

	modeFrom := s.accounts.TrackingMode(r.user, r.accountFrom)
	if _, err := s.balances.AdjustBalance(tx, r.accountFrom.ID, r.currency, r.amount.Neg(), modeFrom); err != nil {
		return err
	}

	modeTo := s.accounts.TrackingMode(r.user, r.accountTo)
	_, err := s.balances.AdjustBalance(tx, r.accountTo.ID, destCurrency, destAmount, modeTo)
	return err
}

func (s *transactionService) applyConversion(tx *gorm.DB, r *resolvedIntent) error {
	modeFrom := s.accounts.TrackingMode(r.user, r.accountFrom)
	if _, err := s.balances.AdjustBalance(tx, r.accountFrom.ID, r.currency, r.amount.Neg(), modeFrom); err != nil {
		return err
	}

	modeTo := s.accounts.TrackingMode(r.user, r.accountTo)
	_, err := s.balances.AdjustBalance(tx, r.accountTo.ID, r.currencyTo, *r.amountTo, modeTo)
	return err
}

// validateInput checks the intent's shape-independent preconditions.
// No side effects occur on failure.
func validateInput(input *TransactionInput) error {
	switch input.Type {
	case models.TransactionTypeIncome, models.TransactionTypeExpense,
		models.TransactionTypeTransfer, models.TransactionTypeConversion:
	default:
		return apperrors.ErrInvalidTransactionType
	}

	if !input.Amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if !models.IsKnownCurrency(input.Currency) {
		return apperrors.WithMessage(apperrors.ErrUnknownCurrency, fmt.Sprintf("unrecognized currency code %q", input.Currency))
	}
	if input.CurrencyTo != "" && !models.IsKnownCurrency(input.CurrencyTo) {
		return apperrors.WithMessage(apperrors.ErrUnknownCurrency, fmt.Sprintf("unrecognized currency code %q", input.CurrencyTo))
	}
	if input.AmountTo != nil && !input.AmountTo.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "destination amount must be greater than zero")
	}
	if input.ExchangeRate != nil && !input.ExchangeRate.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "exchange rate must be greater than zero")
	}
	if len(input.Description) > 500 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "description cannot exceed 500 characters")
	}
	return nil
}

// reject records a rejected intent in metrics.
func reject(err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		metrics.TransactionsRejectedTotal.WithLabelValues(appErr.Code).Inc()
	}
}

// ListTransactions retrieves a paginated, filtered list of a user's transactions.
func (s *transactionService) ListTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)

	if filter.AccountName != nil {
		account, err := s.accounts.GetAccountByName(userID, *filter.AccountName)
		if err != nil {
			return nil, err
		}
		base = base.Where("account_from_id = ? OR account_to_id = ?", account.ID, account.ID)
	}
	if filter.FromDate != nil {
		base = base.Where("date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		base = base.Where("date <= ?", *filter.ToDate)
	}
	if filter.Type != nil {
		base = base.Where("type = ?", *filter.Type)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC").
		Preload("AccountFrom").
		Preload("AccountTo").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).
		Preload("AccountFrom").
		Preload("AccountTo").
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction corrects descriptive fields of an existing transaction.
// Balance effects are immutable: corrections are never re-applied to
// balances, only to the record itself.
func (s *transactionService) UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if fields.Amount != nil {
		if !fields.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *fields.Amount
	}
	if fields.Description != nil {
		if len(*fields.Description) > 500 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description cannot exceed 500 characters")
		}
		updates["description"] = *fields.Description
	}
	if fields.Date != nil {
		updates["date"] = *fields.Date
	}
	if fields.Currency != nil {
		currency := models.NormalizeCurrency(*fields.Currency)
		if !models.IsKnownCurrency(currency) {
			return nil, apperrors.WithMessage(apperrors.ErrUnknownCurrency, fmt.Sprintf("unrecognized currency code %q", *fields.Currency))
		}
		updates["currency"] = currency
	}

	if len(updates) > 0 {
		if err := s.db.Model(transaction).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Where("id = ?", transaction.ID).First(transaction).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return transaction, nil
}
