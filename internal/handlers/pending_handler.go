package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "plata/internal/errors"
	"plata/internal/pagination"
	"plata/internal/services"
)

// PendingHandler handles the pending-transaction queue endpoints.
type PendingHandler struct {
	pendingService     services.PendingServicer
	transactionService services.TransactionServicer
}

// NewPendingHandler creates a new PendingHandler.
func NewPendingHandler(pendingService services.PendingServicer, transactionService services.TransactionServicer) *PendingHandler {
	return &PendingHandler{pendingService: pendingService, transactionService: transactionService}
}

// ListPending handles the paginated retrieval of the user's queued intents.
func (h *PendingHandler) ListPending(c *gin.Context) {
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

	result, err := h.pendingService.ListPending(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RetryAll triggers an immediate retry sweep over every claimable queued
// intent. The worker binary runs the same sweep on a schedule; this endpoint
// exists for on-demand retries.
func (h *PendingHandler) RetryAll(c *gin.Context) {
	if _, err := getUserID(c); err != nil {
		respondWithError(c, err)
		return
	}

	outcomes := h.pendingService.RetryAll(c.Request.Context(), h.transactionService.ResolvePending)
	if outcomes == nil {
		outcomes = []services.RetryOutcome{}
	}

	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}
