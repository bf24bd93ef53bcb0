package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"loanapp-backend/internal/http/middleware"
	"loanapp-backend/internal/services"
	"loanapp-backend/internal/utils"
)

type LoanHandler struct {
	loans *services.LoanService
	users *services.UserService
}

type LoanSubmitRequest struct {
	AmountRequested decimal.Decimal `json:"amount_requested"`
	Purpose         string          `json:"purpose" binding:"required"`
}

func NewLoanHandler(loans *services.LoanService, users *services.UserService) *LoanHandler {
	return &LoanHandler{loans: loans, users: users}
}

func (h *LoanHandler) Submit(c *gin.Context) {
	var req LoanSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Respond(c, http.StatusBadRequest, "Loan application failed.", utils.ValidationDetails(err))
		return
	}
	if !req.AmountRequested.IsPositive() {
		utils.Respond(c, http.StatusBadRequest, "Loan application failed.",
			map[string]string{"amount_requested": "must be greater than zero"})
		return
	}

	// The evaluator needs the submitter's email for the domain rule.
	user, err := h.users.Profile(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	loan, err := h.loans.Submit(c.Request.Context(), user, req.AmountRequested, req.Purpose)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Respond(c, http.StatusCreated, "Loan application submitted successfully.", loanResponse(loan))
}

func (h *LoanHandler) List(c *gin.Context) {
	page, perPage := parsePage(c)
	items, total, err := h.loans.ListForUser(c.Request.Context(),
		c.GetString(middleware.ContextUserID), c.Request.URL.Query(), page, perPage)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	results := make([]gin.H, 0, len(items))
	for i := range items {
		results = append(results, loanResponse(&items[i]))
	}

	utils.Respond(c, http.StatusOK, "Loan applications fetched successfully.", gin.H{
		"results":    results,
		"pagination": utils.NewPagination(page, perPage, total),
	})
}
