package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"plata/internal/models"
	"plata/internal/pagination"
	"plata/internal/services"
)

// --- mock pending service ---

type mockPendingService struct {
	enqueueFn     func(pending *models.PendingTransaction) (*models.PendingTransaction, error)
	listPendingFn func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PendingTransaction], error)
	retryAllFn    func(ctx context.Context, resolve services.ResolveFunc) []services.RetryOutcome
}

func (m *mockPendingService) Enqueue(pending *models.PendingTransaction) (*models.PendingTransaction, error) {
	if m.enqueueFn != nil {
		return m.enqueueFn(pending)
	}
	return pending, nil
}

func (m *mockPendingService) ListPending(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PendingTransaction], error) {
	if m.listPendingFn != nil {
		return m.listPendingFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.PendingTransaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockPendingService) RetryAll(ctx context.Context, resolve services.ResolveFunc) []services.RetryOutcome {
	if m.retryAllFn != nil {
		return m.retryAllFn(ctx, resolve)
	}
	return nil
}

// verify interface compliance
var _ services.PendingServicer = (*mockPendingService)(nil)

func setupPendingRouter(pending services.PendingServicer, transactions services.TransactionServicer) *gin.Engine {
	handler := NewPendingHandler(pending, transactions)
	r := gin.New()
	auth := r.Group("", injectUserID("user-1"))
	auth.GET("/pending-transactions", handler.ListPending)
	auth.POST("/pending-transactions/retry", handler.RetryAll)
	return r
}

func TestPendingHandler_ListPending(t *testing.T) {
	svc := &mockPendingService{
		listPendingFn: func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PendingTransaction], error) {
			if userID != "user-1" {
				t.Errorf("expected userID user-1, got %s", userID)
			}
			resp := pagination.NewPageResponse([]models.PendingTransaction{
				{Currency: "USD", Status: models.PendingStatusPending, RetryCount: 3},
			}, 1, 20, 1)
			return &resp, nil
		},
	}
	r := setupPendingRouter(svc, &mockTransactionService{})

	rec := doRequest(r, http.MethodGet, "/pending-transactions", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	data := result["data"].([]interface{})
	if len(data) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(data))
	}
	entry := data[0].(map[string]interface{})
	if entry["status"] != "pending" || entry["retry_count"] != float64(3) {
		t.Errorf("unexpected pending entry: %v", entry)
	}
}

func TestPendingHandler_RetryAll(t *testing.T) {
	t.Run("returns the sweep outcomes", func(t *testing.T) {
		svc := &mockPendingService{
			retryAllFn: func(_ context.Context, resolve services.ResolveFunc) []services.RetryOutcome {
				if resolve == nil {
					t.Fatal("expected a resolve function")
				}
				return []services.RetryOutcome{
					{PendingID: "p-1", Resolved: true, TransactionID: "tx-1"},
					{PendingID: "p-2", Resolved: false, Error: "exchange rate unavailable"},
				}
			},
		}
		r := setupPendingRouter(svc, &mockTransactionService{})

		rec := doRequest(r, http.MethodPost, "/pending-transactions/retry", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		results := parseJSON(t, rec)["results"].([]interface{})
		if len(results) != 2 {
			t.Fatalf("expected 2 outcomes, got %d", len(results))
		}
		first := results[0].(map[string]interface{})
		if first["resolved"] != true || first["transaction_id"] != "tx-1" {
			t.Errorf("unexpected first outcome: %v", first)
		}
	})

	t.Run("returns an empty list when the queue is empty", func(t *testing.T) {
		r := setupPendingRouter(&mockPendingService{}, &mockTransactionService{})

		rec := doRequest(r, http.MethodPost, "/pending-transactions/retry", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		results := parseJSON(t, rec)["results"].([]interface{})
		if len(results) != 0 {
			t.Errorf("expected no outcomes, got %v", results)
		}
	})
}
