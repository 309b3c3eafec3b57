package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "plata/internal/errors"
	"plata/internal/models"
	"plata/internal/pagination"
)

// accountService handles account-related business logic.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// GetOrCreateAccount returns the user's account with the given name, creating
// it if absent. Accounts named in a transaction intent are never rejected for
// not existing.
func (s *accountService) GetOrCreateAccount(userID, name string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	var account models.Account
	err := s.db.Where("user_id = ? AND name = ?", userID, name).First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	account = models.Account{
		UserID: userID,
		Name:   name,
		Type:   models.AccountTypeOther,
	}
	if err := s.db.Create(&account).Error; err != nil {
		// A concurrent request may have created it between the lookup and
		// the insert; the unique constraint decides the winner.
		var existing models.Account
		if lookupErr := s.db.Where("user_id = ? AND name = ?", userID, name).First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// CreateAccount creates an account with an explicit type and optional
// tracking-mode override.
func (s *accountService) CreateAccount(userID, name string, accountType models.AccountType, mode *models.TrackingMode) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	account := &models.Account{
		UserID: userID,
		Name:   name,
		Type:   accountType,
		Mode:   mode,
	}
	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return account, nil
}

// GetAccountByID retrieves an account by ID for a specific user
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// GetAccountByName retrieves an account by name for a specific user.
func (s *accountService) GetAccountByName(userID, name string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("user_id = ? AND name = ?", userID, strings.TrimSpace(name)).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// ListAccounts retrieves a paginated list of accounts for a user.
func (s *accountService) ListAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	base := s.db.Model(&models.Account{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Scopes(pagination.Paginate(page)).Order("name").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// TrackingMode resolves the consistency mode for an account: the account
// override when set, otherwise the user-level default.
func (s *accountService) TrackingMode(user *models.User, account *models.Account) models.TrackingMode {
	if account.Mode != nil {
		return *account.Mode
	}
	if user.TrackingMode == "" {
		return models.TrackingModeStrict
	}
	return user.TrackingMode
}

// ListBalances returns the (account, currency, balance) projection for all of
// a user's accounts.
func (s *accountService) ListBalances(userID string) ([]BalanceEntry, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := s.db.Where("user_id = ?", userID).Preload("Balances").Order("name").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	entries := make([]BalanceEntry, 0)
	for i := range accounts {
		account := &accounts[i]
		mode := s.TrackingMode(&user, account)
		for _, balance := range account.Balances {
			entries = append(entries, BalanceEntry{
				AccountID:   account.ID,
				AccountName: account.Name,
				AccountType: account.Type,
				Currency:    balance.Currency,
				Balance:     balance.Balance,
				Mode:        mode,
			})
		}
	}
	return entries, nil
}
