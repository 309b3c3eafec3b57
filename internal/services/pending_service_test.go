package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"plata/internal/fx"
	"plata/internal/models"
	"plata/internal/testutil"
)

func enqueueTestIntent(t *testing.T, db *gorm.DB, pending PendingServicer, userID string) *models.PendingTransaction {
	t.Helper()

	account := testutil.CreateTestAccount(t, db, userID)
	currencyTo := "EUR"
	entry, err := pending.Enqueue(&models.PendingTransaction{
		UserID:        userID,
		Type:          models.TransactionTypeConversion,
		AccountFromID: &account.ID,
		AccountToID:   &account.ID,
		Currency:      "USD",
		Amount:        decimal.NewFromInt(100),
		CurrencyTo:    &currencyTo,
		LastError:     "exchange rate unavailable for USD/EUR",
	})
	testutil.AssertNoError(t, err)
	return entry
}

func TestEnqueueAndListPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	pending := NewPendingService(db, 10)

	entry := enqueueTestIntent(t, db, pending, user.ID)
	if entry.Status != models.PendingStatusPending {
		t.Errorf("expected status pending, got %s", entry.Status)
	}

	result, err := pending.ListPending(user.ID, pageRequest())
	testutil.AssertNoError(t, err)
	if result.TotalItems != 1 {
		t.Fatalf("expected 1 pending entry, got %d", result.TotalItems)
	}
	if result.Data[0].ID != entry.ID {
		t.Errorf("expected entry %s, got %s", entry.ID, result.Data[0].ID)
	}
}

func TestRetryAll_ResolvesAndDeletes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	pending := NewPendingService(db, 10)
	entry := enqueueTestIntent(t, db, pending, user.ID)

	resolved := &models.Transaction{}
	resolved.ID = "tx-1"
	outcomes := pending.RetryAll(context.Background(), func(_ context.Context, p *models.PendingTransaction) (*models.Transaction, error) {
		if p.ID != entry.ID {
			t.Errorf("expected entry %s, got %s", entry.ID, p.ID)
		}
		return resolved, nil
	})

	if len(outcomes) != 1 || !outcomes[0].Resolved {
		t.Fatalf("expected one resolved outcome, got %+v", outcomes)
	}
	if outcomes[0].TransactionID != "tx-1" {
		t.Errorf("expected transaction ID tx-1, got %s", outcomes[0].TransactionID)
	}

	var count int64
	db.Model(&models.PendingTransaction{}).Count(&count)
	if count != 0 {
		t.Errorf("expected resolved entry to be deleted, got %d rows", count)
	}
}

func TestRetryAll_FailureBumpsRetryCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	pending := NewPendingService(db, 10)
	entry := enqueueTestIntent(t, db, pending, user.ID)

	outcomes := pending.RetryAll(context.Background(), func(context.Context, *models.PendingTransaction) (*models.Transaction, error) {
		return nil, fx.ErrUnavailable
	})
	if len(outcomes) != 1 || outcomes[0].Resolved {
		t.Fatalf("expected one unresolved outcome, got %+v", outcomes)
	}

	var stored models.PendingTransaction
	testutil.AssertNoError(t, db.Where("id = ?", entry.ID).First(&stored).Error)
	if stored.RetryCount != 1 {
		t.Errorf("expected retry_count 1, got %d", stored.RetryCount)
	}
	if stored.Status != models.PendingStatusPending {
		t.Errorf("expected entry released back to pending, got %s", stored.Status)
	}
	if stored.LastError == "" {
		t.Error("expected last_error to be recorded")
	}
	if stored.LastAttemptAt == nil {
		t.Error("expected last_attempt_at to be set")
	}
}

func TestRetryAll_SkipsClaimedEntries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	pending := NewPendingService(db, 10)
	entry := enqueueTestIntent(t, db, pending, user.ID)

	// Simulate another worker holding the entry.
	testutil.AssertNoError(t, db.Model(&models.PendingTransaction{}).
		Where("id = ?", entry.ID).
		Update("status", models.PendingStatusProcessing).Error)

	outcomes := pending.RetryAll(context.Background(), func(context.Context, *models.PendingTransaction) (*models.Transaction, error) {
		t.Fatal("resolve must not run for a claimed entry")
		return nil, nil
	})
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
}

func TestRetryAll_RespectsRetryCap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	pending := NewPendingService(db, 2)
	entry := enqueueTestIntent(t, db, pending, user.ID)

	fail := func(context.Context, *models.PendingTransaction) (*models.Transaction, error) {
		return nil, fx.ErrUnavailable
	}

	outcomes := pending.RetryAll(context.Background(), fail)
	if len(outcomes) != 1 || outcomes[0].Exhausted {
		t.Fatalf("first sweep: expected one non-exhausted outcome, got %+v", outcomes)
	}

	outcomes = pending.RetryAll(context.Background(), fail)
	if len(outcomes) != 1 || !outcomes[0].Exhausted {
		t.Fatalf("second sweep: expected exhausted outcome, got %+v", outcomes)
	}

	// At the cap, the entry is no longer swept but stays visible to the user.
	outcomes = pending.RetryAll(context.Background(), func(context.Context, *models.PendingTransaction) (*models.Transaction, error) {
		t.Fatal("resolve must not run for an exhausted entry")
		return nil, nil
	})
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes past the cap, got %d", len(outcomes))
	}

	var stored models.PendingTransaction
	testutil.AssertNoError(t, db.Where("id = ?", entry.ID).First(&stored).Error)
	if stored.RetryCount != 2 {
		t.Errorf("expected retry_count 2, got %d", stored.RetryCount)
	}
}

func TestRetryAll_OneFailureDoesNotBlockOthers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	pending := NewPendingService(db, 10)
	first := enqueueTestIntent(t, db, pending, user.ID)
	second := enqueueTestIntent(t, db, pending, user.ID)

	resolved := &models.Transaction{}
	resolved.ID = "tx-2"
	outcomes := pending.RetryAll(context.Background(), func(_ context.Context, p *models.PendingTransaction) (*models.Transaction, error) {
		if p.ID == first.ID {
			return nil, errors.New("boom")
		}
		return resolved, nil
	})

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	byID := map[string]RetryOutcome{}
	for _, o := range outcomes {
		byID[o.PendingID] = o
	}
	if byID[first.ID].Resolved {
		t.Error("expected first entry to fail")
	}
	if !byID[second.ID].Resolved {
		t.Error("expected second entry to resolve")
	}
}
