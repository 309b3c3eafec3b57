package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "plata/internal/errors"
	"plata/internal/models"
)

// userService resolves external caller identities to User rows.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// GetOrCreateByTelegramID returns the user with the given external identity,
// creating one with the default strict tracking mode if absent.
func (s *userService) GetOrCreateByTelegramID(telegramUserID string) (*models.User, error) {
	telegramUserID = strings.TrimSpace(telegramUserID)
	if telegramUserID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "caller identity is required")
	}

	var user models.User
	err := s.db.Where("telegram_user_id = ?", telegramUserID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user = models.User{
		TelegramUserID: telegramUserID,
		IsActive:       true,
		TrackingMode:   models.TrackingModeStrict,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by primary key.
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// SetTrackingMode updates the user-level default consistency mode. Accounts
// with an explicit override keep their own mode.
func (s *userService) SetTrackingMode(userID string, mode models.TrackingMode) (*models.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if mode != models.TrackingModeStrict && mode != models.TrackingModeLogging {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tracking mode must be strict or logging")
	}

	if err := s.db.Model(user).Update("tracking_mode", mode).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.TrackingMode = mode
	return user, nil
}
