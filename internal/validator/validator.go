// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"plata/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("currency_code", validateCurrencyCode)
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("account_type", validateAccountType)
		_ = v.RegisterValidation("tracking_mode", validateTrackingMode)
	}
}

// validateCurrencyCode checks that a string is a recognized fiat (ISO 4217)
// or supported crypto/stablecoin code.
func validateCurrencyCode(fl validator.FieldLevel) bool {
	return models.IsKnownCurrency(fl.Field().String())
}

// validateTransactionType checks that a string is a valid transaction type.
func validateTransactionType(fl validator.FieldLevel) bool {
	switch models.TransactionType(fl.Field().String()) {
	case models.TransactionTypeIncome, models.TransactionTypeExpense,
		models.TransactionTypeTransfer, models.TransactionTypeConversion:
		return true
	default:
		return false
	}
}

// validateAccountType checks that a string is a valid account type.
func validateAccountType(fl validator.FieldLevel) bool {
	switch models.AccountType(fl.Field().String()) {
	case models.AccountTypeBank, models.AccountTypeWallet,
		models.AccountTypeCash, models.AccountTypeOther:
		return true
	default:
		return false
	}
}

// validateTrackingMode checks that a string is a valid balance tracking mode.
func validateTrackingMode(fl validator.FieldLevel) bool {
	switch models.TrackingMode(fl.Field().String()) {
	case models.TrackingModeStrict, models.TrackingModeLogging:
		return true
	default:
		return false
	}
}
