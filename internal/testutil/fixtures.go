package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"plata/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a strict-mode user with a unique Telegram ID.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithMode(t, db, models.TrackingModeStrict)
}

// CreateTestUserWithMode creates a user with the given default tracking mode.
func CreateTestUserWithMode(t *testing.T, db *gorm.DB, mode models.TrackingMode) *models.User {
	t.Helper()

	user := &models.User{
		TelegramUserID: fmt.Sprintf("%d", 100000+nextID()),
		FirstName:      "Test",
		IsActive:       true,
		TrackingMode:   mode,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates an account with a unique name and type "other".
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string) *models.Account {
	t.Helper()
	return CreateTestAccountWithName(t, db, userID, fmt.Sprintf("Test Account %d", nextID()))
}

// CreateTestAccountWithName creates an account with the given name.
func CreateTestAccountWithName(t *testing.T, db *gorm.DB, userID, name string) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID: userID,
		Name:   name,
		Type:   models.AccountTypeOther,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// SeedBalance sets an account's balance in the given currency.
func SeedBalance(t *testing.T, db *gorm.DB, accountID, currency string, balance decimal.Decimal) {
	t.Helper()

	row := &models.AccountBalance{
		AccountID: accountID,
		Currency:  currency,
		Balance:   balance,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("failed to seed balance: %v", err)
	}
}

// GetBalance reads an account's balance in the given currency, zero if absent.
func GetBalance(t *testing.T, db *gorm.DB, accountID, currency string) decimal.Decimal {
	t.Helper()

	var row models.AccountBalance
	err := db.Where("account_id = ? AND currency = ?", accountID, currency).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero
		}
		t.Fatalf("failed to read balance: %v", err)
	}
	return row.Balance
}
