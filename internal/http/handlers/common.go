package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"loanapp-backend/internal/models"
	"loanapp-backend/internal/services"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ok", "data": gin.H{"status": "healthy"}})
}

func userProfile(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"role":       u.Role,
		"is_active":  u.IsActive,
	}
}

func loginData(res *services.LoginResult) gin.H {
	user := userProfile(res.User)
	user["is_superuser"] = res.User.IsSuperuser
	return gin.H{
		"user":                     user,
		"access_token":             res.Tokens.AccessToken,
		"refresh_token":            res.Tokens.RefreshToken,
		"access_token_expiration":  res.Tokens.AccessTokenExpiration,
		"refresh_token_expiration": res.Tokens.RefreshTokenExpiration,
	}
}

func loanResponse(l *models.LoanApplication) gin.H {
	return gin.H{
		"id":               l.ID,
		"amount_requested": l.AmountRequested,
		"purpose":          l.Purpose,
		"status":           l.Status,
	}
}

// adminLoanResponse is the canonical admin contract: owner and timestamps on
// top of the user-facing fields.
func adminLoanResponse(l *models.LoanApplication) gin.H {
	resp := loanResponse(l)
	resp["user_id"] = l.UserID
	resp["created_at"] = l.CreatedAt
	resp["updated_at"] = l.UpdatedAt
	return resp
}

func parsePage(c *gin.Context) (page, perPage int) {
	return parseIntDefault(c.Query("page"), 1), parseIntDefault(c.Query("per_page"), 10)
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
