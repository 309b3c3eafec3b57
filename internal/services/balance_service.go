package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "plata/internal/errors"
	"plata/internal/models"
)

// casAttempts bounds the compare-and-swap loop in AdjustBalance. Contention
// on a single (account, currency) pair is retried; exhausting the loop means
// pathological write pressure and is surfaced as an internal error.
const casAttempts = 5

// balanceService is the per-(account, currency) balance store.
type balanceService struct{}

// NewBalanceService creates a new BalanceServicer.
func NewBalanceService() BalanceServicer {
	return &balanceService{}
}

// GetBalance returns the stored balance for the pair; an absent row is zero.
func (s *balanceService) GetBalance(db *gorm.DB, accountID, currency string) (decimal.Decimal, error) {
	var row models.AccountBalance
	err := db.Where("account_id = ? AND currency = ?", accountID, currency).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return row.Balance, nil
}

// AdjustBalance applies delta to the pair's balance using a compare-and-swap
// loop, so two concurrent writers cannot both read a stale balance and lose
// a mutation. Under strict mode a resulting negative balance is rejected
// with ErrInsufficientBalance and nothing is written.
func (s *balanceService) AdjustBalance(db *gorm.DB, accountID, currency string, delta decimal.Decimal, mode models.TrackingMode) (decimal.Decimal, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		var row models.AccountBalance
		err := db.Where("account_id = ? AND currency = ?", accountID, currency).First(&row).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			if mode == models.TrackingModeStrict && delta.IsNegative() {
				return decimal.Zero, apperrors.ErrInsufficientBalance
			}
			row = models.AccountBalance{
				AccountID: accountID,
				Currency:  currency,
				Balance:   delta,
			}
			if createErr := db.Create(&row).Error; createErr != nil {
				// Lost the insert race on the unique (account, currency)
				// constraint; retry against the winner's row.
				continue
			}
			return row.Balance, nil
		}
		if err != nil {
			return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		next := row.Balance.Add(delta)
		if mode == models.TrackingModeStrict && next.IsNegative() {
			return decimal.Zero, apperrors.ErrInsufficientBalance
		}

		res := db.Model(&models.AccountBalance{}).
			Where("id = ? AND balance = ?", row.ID, row.Balance).
			Updates(map[string]interface{}{
				"balance":    next,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 1 {
			return next, nil
		}
		// Another writer changed the balance between read and write; retry.
	}

	return decimal.Zero, apperrors.WithMessage(apperrors.ErrInternalServer, "balance update contention")
}
