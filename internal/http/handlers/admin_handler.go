package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loanapp-backend/internal/http/middleware"
	"loanapp-backend/internal/repo"
	"loanapp-backend/internal/services"
	"loanapp-backend/internal/utils"
)

type AdminHandler struct {
	users *services.UserService
	loans *services.LoanService
}

type LoanStatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

type BlockUserRequest struct {
	Blocked *bool `json:"blocked" binding:"required"`
}

func NewAdminHandler(users *services.UserService, loans *services.LoanService) *AdminHandler {
	return &AdminHandler{users: users, loans: loans}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, perPage := parsePage(c)
	users, total, err := h.users.ListUsers(c.Request.Context(), repo.UserFilters{
		Query:   c.Request.URL.Query(),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	results := make([]gin.H, 0, len(users))
	for i := range users {
		profile := userProfile(&users[i])
		profile["is_superuser"] = users[i].IsSuperuser
		profile["created_at"] = users[i].CreatedAt
		results = append(results, profile)
	}

	utils.Respond(c, http.StatusOK, "Users fetched successfully.", gin.H{
		"results":    results,
		"pagination": utils.NewPagination(page, perPage, total),
	})
}

func (h *AdminHandler) ListLoans(c *gin.Context) {
	page, perPage := parsePage(c)
	items, total, err := h.loans.ListAll(c.Request.Context(), c.Request.URL.Query(), page, perPage)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	results := make([]gin.H, 0, len(items))
	for i := range items {
		results = append(results, adminLoanResponse(&items[i]))
	}

	utils.Respond(c, http.StatusOK, "Loan applications fetched successfully.", gin.H{
		"results":    results,
		"pagination": utils.NewPagination(page, perPage, total),
	})
}

func (h *AdminHandler) GetLoan(c *gin.Context) {
	loan, flags, err := h.loans.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	resp := adminLoanResponse(loan)
	reasons := make([]gin.H, 0, len(flags))
	for _, flag := range flags {
		reasons = append(reasons, gin.H{"reason": flag.Reason, "created_at": flag.CreatedAt})
	}
	resp["fraud_flags"] = reasons

	utils.Respond(c, http.StatusOK, "Loan application fetched successfully.", resp)
}

func (h *AdminHandler) UpdateLoanStatus(c *gin.Context) {
	var req LoanStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err)
		return
	}

	loan, err := h.loans.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status,
		c.GetString(middleware.ContextUserID))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "Loan status successfully updated.", adminLoanResponse(loan))
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	user, err := h.users.DeleteAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "User deleted successfully.", gin.H{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

func (h *AdminHandler) MakeSuperuser(c *gin.Context) {
	user, err := h.users.MakeSuperuser(c.Request.Context(), c.Param("id"),
		c.GetString(middleware.ContextUserID))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "User successfully promoted to superuser.", gin.H{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

func (h *AdminHandler) BlockUser(c *gin.Context) {
	var req BlockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err)
		return
	}

	user, err := h.users.SetBlocked(c.Request.Context(), c.Param("id"), *req.Blocked,
		c.GetString(middleware.ContextUserID))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	message := "User blocked successfully."
	if !*req.Blocked {
		message = "User unblocked successfully."
	}
	utils.Respond(c, http.StatusOK, message, gin.H{
		"user_id": user.ID,
		"email":   user.Email,
	})
}
