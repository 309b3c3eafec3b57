package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "plata/internal/errors"
	"plata/internal/fx"
	"plata/internal/logger"
	"plata/internal/metrics"
	"plata/internal/models"
	"plata/internal/pagination"
)

// pendingService owns the queue of intents waiting on an exchange rate.
// Entries are claimed with a guarded status flip so overlapping sweeps
// never process the same entry twice.
type pendingService struct {
	db         *gorm.DB
	maxRetries int
}

// NewPendingService creates a new PendingServicer. maxRetries bounds how
// often an entry is retried before the sweep stops picking it up.
func NewPendingService(db *gorm.DB, maxRetries int) PendingServicer {
	return &pendingService{db: db, maxRetries: maxRetries}
}

// Enqueue stores a deferred intent.
func (s *pendingService) Enqueue(pending *models.PendingTransaction) (*models.PendingTransaction, error) {
	pending.Status = models.PendingStatusPending
	if err := s.db.Create(pending).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return pending, nil
}

// ListPending retrieves a user's queued intents, oldest first.
func (s *pendingService) ListPending(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.PendingTransaction], error) {
	page.Defaults()

	base := s.db.Model(&models.PendingTransaction{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var entries []models.PendingTransaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at ASC").
		Preload("AccountFrom").
		Preload("AccountTo").
		Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// RetryAll sweeps every claimable entry and re-runs it through resolve.
// Each entry is handled independently: a resolved entry is deleted, a
// still-unresolvable one goes back to pending with its retry count bumped,
// and entries at the retry cap are left alone and reported as exhausted.
func (s *pendingService) RetryAll(ctx context.Context, resolve ResolveFunc) []RetryOutcome {
	log := logger.Get()

	var entries []models.PendingTransaction
	err := s.db.Where("status = ? AND retry_count < ?", models.PendingStatusPending, s.maxRetries).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		log.Errorw("pending sweep query failed", "error", err)
		return nil
	}

	outcomes := make([]RetryOutcome, 0, len(entries))
	for i := range entries {
		entry := &entries[i]

		claimed, err := s.claim(entry)
		if err != nil {
			log.Errorw("failed to claim pending transaction", "pending_id", entry.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		outcomes = append(outcomes, s.retryOne(ctx, entry, resolve))
	}
	return outcomes
}

// claim flips the entry from pending to processing. A false return means
// another worker got there first.
func (s *pendingService) claim(entry *models.PendingTransaction) (bool, error) {
	now := time.Now().UTC()
	result := s.db.Model(&models.PendingTransaction{}).
		Where("id = ? AND status = ?", entry.ID, models.PendingStatusPending).
		Updates(map[string]interface{}{
			"status":          models.PendingStatusProcessing,
			"last_attempt_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	entry.Status = models.PendingStatusProcessing
	entry.LastAttemptAt = &now
	return true, nil
}

func (s *pendingService) retryOne(ctx context.Context, entry *models.PendingTransaction, resolve ResolveFunc) RetryOutcome {
	log := logger.Get()
	metrics.PendingRetriesTotal.Inc()

	outcome := RetryOutcome{PendingID: entry.ID}

	transaction, err := resolve(ctx, entry)
	if err == nil {
		if err := s.db.Delete(&models.PendingTransaction{}, "id = ?", entry.ID).Error; err != nil {
			log.Errorw("resolved pending transaction but failed to delete it",
				"pending_id", entry.ID, "transaction_id", transaction.ID, "error", err)
		}
		metrics.PendingResolvedTotal.Inc()
		log.Infow("pending transaction resolved",
			"pending_id", entry.ID, "transaction_id", transaction.ID, "attempts", entry.RetryCount+1)

		outcome.Resolved = true
		outcome.TransactionID = transaction.ID
		return outcome
	}

	entry.RetryCount++
	outcome.Error = err.Error()
	outcome.Exhausted = entry.RetryCount >= s.maxRetries

	if !errors.Is(err, fx.ErrUnavailable) {
		log.Errorw("pending transaction retry failed",
			"pending_id", entry.ID, "retry_count", entry.RetryCount, "error", err)
	}
	if outcome.Exhausted {
		log.Warnw("pending transaction reached retry limit, giving up",
			"pending_id", entry.ID, "retry_count", entry.RetryCount, "error", err)
	}

	updates := map[string]interface{}{
		"status":      models.PendingStatusPending,
		"retry_count": entry.RetryCount,
		"last_error":  err.Error(),
	}
	if dbErr := s.db.Model(&models.PendingTransaction{}).
		Where("id = ?", entry.ID).
		Updates(updates).Error; dbErr != nil {
		log.Errorw("failed to record pending retry failure", "pending_id", entry.ID, "error", dbErr)
	}
	return outcome
}
