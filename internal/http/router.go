package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"loanapp-backend/internal/config"
	"loanapp-backend/internal/http/handlers"
	"loanapp-backend/internal/http/middleware"
	"loanapp-backend/internal/services"
)

type Dependencies struct {
	Config      *config.Config
	Logger      *slog.Logger
	Auth        *services.AuthService
	Users       *services.UserService
	Loans       *services.LoanService
	Issuer      services.TokenIssuer
	RateLimiter *middleware.RateLimiter
}

func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(deps.Config.AllowedOrigins))
	router.Use(middleware.Envelope())

	authHandler := handlers.NewAuthHandler(deps.Auth)
	profileHandler := handlers.NewProfileHandler(deps.Users)
	loanHandler := handlers.NewLoanHandler(deps.Loans, deps.Users)
	adminHandler := handlers.NewAdminHandler(deps.Users, deps.Loans)

	router.GET("/healthz", handlers.Health)

	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.Use(deps.RateLimiter.Middleware())
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/activate", authHandler.Activate)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.JWTAuth(deps.Issuer))
	{
		protected.GET("/profile", profileHandler.Get)
		protected.PATCH("/profile", profileHandler.Update)
		protected.DELETE("/profile", profileHandler.Delete)

		protected.POST("/loans", loanHandler.Submit)
		protected.GET("/loans", loanHandler.List)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.PATCH("/users/:id/make-superuser", adminHandler.MakeSuperuser)
			admin.PATCH("/users/:id/block", adminHandler.BlockUser)

			admin.GET("/loans", adminHandler.ListLoans)
			admin.GET("/loans/:id", adminHandler.GetLoan)
			admin.PATCH("/loans/:id", adminHandler.UpdateLoanStatus)
		}
	}

	return router
}
