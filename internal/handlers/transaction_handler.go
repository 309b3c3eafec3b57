package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "plata/internal/errors"
	"plata/internal/models"
	"plata/internal/pagination"
	"plata/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// CreateTransactionRequest represents the request payload for submitting a
// transaction intent. Accounts are referenced by name and created on first
// use; amount_to and exchange_rate are optional overrides for cross-currency
// intents.
type CreateTransactionRequest struct {
	Type         models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount       decimal.Decimal        `json:"amount" binding:"required"`
	Currency     string                 `json:"currency" binding:"required,currency_code"`
	AccountFrom  string                 `json:"account_from" binding:"max=100"`
	AccountTo    string                 `json:"account_to" binding:"max=100"`
	CurrencyTo   string                 `json:"currency_to" binding:"omitempty,currency_code"`
	AmountTo     *decimal.Decimal       `json:"amount_to"`
	ExchangeRate *decimal.Decimal       `json:"exchange_rate"`
	Description  string                 `json:"description" binding:"max=500"`
	Date         *string                `json:"date"`
}

// CreateTransaction handles the submission of a transaction intent. A
// committed transaction returns 201; an intent deferred for want of an
// exchange rate returns 202 with the queued entry.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.TransactionInput{
		Type:         req.Type,
		Amount:       req.Amount,
		Currency:     req.Currency,
		AccountFrom:  req.AccountFrom,
		AccountTo:    req.AccountTo,
		CurrencyTo:   req.CurrencyTo,
		AmountTo:     req.AmountTo,
		ExchangeRate: req.ExchangeRate,
		Description:  req.Description,
	}
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, parseErr.Error()))
			return
		}
		input.Date = parsed
	}

	outcome, err := h.transactionService.CreateTransaction(c.Request.Context(), userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if outcome.IsPending() {
		c.JSON(apperrors.ErrRateUnavailable.StatusCode, gin.H{
			"status":  "pending",
			"code":    apperrors.ErrRateUnavailable.Code,
			"message": "exchange rate unavailable, transaction queued for retry",
			"pending": outcome.Pending,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": outcome.Transaction})
}

// ListTransactions handles the paginated retrieval of the user's transactions
// with optional date, type and account filters.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.ListTransactions(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if v := c.Query("from_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.FromDate = &t
	}

	if v := c.Query("to_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.ToDate = &t
	}

	if v := c.Query("type"); v != "" {
		txType := models.TransactionType(v)
		switch txType {
		case models.TransactionTypeIncome, models.TransactionTypeExpense,
			models.TransactionTypeTransfer, models.TransactionTypeConversion:
			filter.Type = &txType
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid type, must be income, expense, transfer, or conversion")
		}
	}

	if v := c.Query("account"); v != "" {
		filter.AccountName = &v
	}

	return filter, nil
}

// GetTransactionByID handles the retrieval of a specific transaction.
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransactionRequest represents the request payload for correcting a
// transaction's descriptive fields.
type UpdateTransactionRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description" binding:"omitempty,max=500"`
	Currency    *string          `json:"currency" binding:"omitempty,currency_code"`
	Date        *string          `json:"date"`
}

// UpdateTransaction handles descriptive corrections to an existing
// transaction. Balances recorded at creation time are never re-applied.
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	fields := services.TransactionUpdateFields{
		Amount:      req.Amount,
		Description: req.Description,
		Currency:    req.Currency,
	}
	if req.Date != nil && *req.Date != "" {
		var parsed time.Time
		parsed, err = parseFlexibleTime(*req.Date)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		fields.Date = &parsed
	}

	transaction, err := h.transactionService.UpdateTransaction(userID, c.Param("id"), fields)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}
