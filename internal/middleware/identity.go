package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "plata/internal/errors"
	"plata/internal/logger"
	"plata/internal/services"
)

// identityHeader carries the caller's external identity. The Telegram
// gateway terminates authentication and forwards the verified user ID here.
const identityHeader = "X-Telegram-User-ID"

// Identity returns a Gin middleware that resolves the external user ID into
// an internal user record, creating the user on first contact, and stores
// the internal ID on the context for handlers.
func Identity(users services.UserServicer) gin.HandlerFunc {
	return func(c *gin.Context) {
		externalID := strings.TrimSpace(c.GetHeader(identityHeader))
		if externalID == "" {
			appErr := apperrors.WithMessage(apperrors.ErrUnauthorized, "missing "+identityHeader+" header")
			c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
				"error": gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
				},
			})
			return
		}

		user, err := users.GetOrCreateByTelegramID(externalID)
		if err != nil {
			logger.Get().Errorw("failed to resolve caller identity",
				"telegram_user_id", externalID,
				"error", err,
			)
			c.AbortWithStatusJSON(apperrors.ErrInternalServer.StatusCode, gin.H{
				"error": gin.H{
					"code":    apperrors.ErrInternalServer.Code,
					"message": apperrors.ErrInternalServer.Message,
				},
			})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
