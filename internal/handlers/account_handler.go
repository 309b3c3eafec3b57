package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "plata/internal/errors"
	"plata/internal/models"
	"plata/internal/pagination"
	"plata/internal/services"
)

// AccountHandler handles account-related requests.
type AccountHandler struct {
	accountService services.AccountServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccountRequest represents the request payload for creating an account
// explicitly. Accounts also come into being implicitly when a transaction
// names them; this endpoint exists to set a type or consistency mode up front.
type CreateAccountRequest struct {
	Name string               `json:"name" binding:"required,min=1,max=100"`
	Type *models.AccountType  `json:"type" binding:"omitempty,account_type"`
	Mode *models.TrackingMode `json:"mode" binding:"omitempty,tracking_mode"`
}

// CreateAccount handles the explicit creation of a new account.
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	accountType := models.AccountTypeOther
	if req.Type != nil {
		accountType = *req.Type
	}

	account, err := h.accountService.CreateAccount(userID, req.Name, accountType, req.Mode)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// ListAccounts handles the paginated retrieval of the user's accounts.
func (h *AccountHandler) ListAccounts(c *gin.Context) {
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

	result, err := h.accountService.ListAccounts(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAccountByID handles the retrieval of a specific account.
func (h *AccountHandler) GetAccountByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.GetAccountByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// ListBalances handles the retrieval of the user's balances across all
// accounts and currencies.
func (h *AccountHandler) ListBalances(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	balances, err := h.accountService.ListBalances(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balances": balances})
}
