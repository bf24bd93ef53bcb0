package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"loanapp-backend/internal/services"
	"loanapp-backend/internal/utils"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// JWTAuth authenticates bearer access tokens and stores the claims in the
// request context for handlers and audit stamping.
func JWTAuth(tokens services.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "Authentication credentials were not provided.")
			return
		}

		claims, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "), services.TokenTypeAccess)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token.")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin guards the moderation routes. It runs after JWTAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != "admin" {
			utils.RespondError(c, utils.NewAppError(http.StatusForbidden, "FORBIDDEN",
				"You do not have permission to perform this action.", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	utils.RespondError(c, utils.NewAppError(http.StatusUnauthorized, "UNAUTHORIZED", message, nil))
	c.Abort()
}
