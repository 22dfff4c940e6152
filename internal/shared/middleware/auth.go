package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/shared/response"
	"bookreview-backend/pkg/jwt"
)

// ContextUserIDKey is where the authenticated caller id lives on the gin context.
const ContextUserIDKey = "user_id"

// AuthMiddleware verifies the bearer token and stores the caller id.
// The id is treated as opaque: identity issuance lives elsewhere.
func AuthMiddleware(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}

		// 2. "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header format")
			return
		}

		// 3. Verify and parse
		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			log.Debug().
				Err(err).
				Str("request_id", c.GetString(ContextRequestIDKey)).
				Msg("Rejected bearer token")
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// GetUserID returns the authenticated caller id set by AuthMiddleware.
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ContextUserIDKey)
	return userID, userID != ""
}
