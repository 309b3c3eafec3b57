package models

// TrackingMode controls how balance mutations are enforced for a user's accounts.
type TrackingMode string

const (
	// TrackingModeStrict rejects any mutation that would leave a balance negative.
	TrackingModeStrict TrackingMode = "strict"
	// TrackingModeLogging records transactions without balance constraints.
	TrackingModeLogging TrackingMode = "logging"
)

// User represents an already-authenticated caller. Identity resolution and
// sessions happen upstream; this system only scopes accounts and
// transactions by user.
type User struct {
	Base
	TelegramUserID string       `gorm:"uniqueIndex;not null" json:"telegram_user_id"`
	FirstName      string       `json:"first_name,omitempty"`
	LastName       string       `json:"last_name,omitempty"`
	Username       string       `json:"username,omitempty"`
	LanguageCode   string       `json:"language_code,omitempty"`
	IsActive       bool         `gorm:"default:true" json:"is_active"`
	TrackingMode   TrackingMode `gorm:"not null;default:'strict'" json:"tracking_mode"`

	// Relationships
	Accounts []Account `gorm:"foreignKey:UserID" json:"accounts,omitempty"`
}
