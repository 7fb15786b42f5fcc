package middleware

import (
	"net/http"
	"strings"

	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// UserHeader is set by the console's auth proxy on every forwarded request.
	UserHeader = "X-User-Id"

	userIDKey = "userID"
)

// UserContext resolves the caller from the auth proxy header and sets user
// context. Browsers cannot set headers on WebSocket upgrades, so the userId
// query parameter is accepted there.
func UserContext(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" && websocketUpgrade(c.Request) {
			userID = strings.TrimSpace(c.Query("userId"))
		}
		if userID == "" {
			log.Warn("Missing user identity", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		c.Set(userIDKey, userID)
		c.Request = c.Request.WithContext(backend.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func websocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RequireUserID writes 401 when no user is in context.
func RequireUserID(c *gin.Context) (string, bool) {
	userID := GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	return userID, true
}
