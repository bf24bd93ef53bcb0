package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loanapp-backend/internal/http/middleware"
	"loanapp-backend/internal/services"
	"loanapp-backend/internal/utils"
)

type ProfileHandler struct {
	users *services.UserService
}

type ProfileUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password" binding:"omitempty,min=8"`
}

func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "User profile fetched successfully.", userProfile(user))
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(),
		c.GetString(middleware.ContextUserID), req.FirstName, req.LastName, req.Password)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "Profile updated successfully.", userProfile(user))
}

func (h *ProfileHandler) Delete(c *gin.Context) {
	if _, err := h.users.DeleteAccount(c.Request.Context(), c.GetString(middleware.ContextUserID)); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "User profile deleted successfully.", nil)
}
