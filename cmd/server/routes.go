package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/handlers"
	"github.com/huangang/meridian/internal/middleware"
	"github.com/huangang/meridian/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(middleware.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(svc.cfg.CORS))

	healthHandler := handlers.NewHealthHandler(svc.db)
	r.GET("/health", healthHandler.CheckHealth)

	boardHandler := handlers.NewBoardHandler(svc.board)
	meridianHandler := handlers.NewMeridianHandler(svc.meridians)
	statusHandler := handlers.NewStatusHandler(svc.statuses)
	memberHandler := handlers.NewMemberHandler(svc.members)
	invitationHandler := handlers.NewInvitationHandler(svc.invitations)
	itemHandler := handlers.NewItemHandler(svc.items, svc.activity)
	sprintHandler := handlers.NewSprintHandler(svc.sprints)
	userHandler := handlers.NewUserHandler(svc.users)

	// Token routes are the only ones a stranger can guess at.
	tokenLimiter := middleware.NewRateLimiter(svc.cfg.RateLimit)

	api := r.Group("/api")
	api.GET("/health", healthHandler.CheckHealth)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(svc.cfg.Auth, svc.users), middleware.AuditLog())
	{
		protected.GET("/board", boardHandler.Get)

		// Meridians
		protected.POST("/meridians", meridianHandler.Create)
		protected.GET("/meridians/:id", meridianHandler.Get)
		protected.PATCH("/meridians/:id", meridianHandler.Update)
		protected.DELETE("/meridians/:id", meridianHandler.Delete)

		// Statuses
		protected.GET("/meridians/:id/statuses", statusHandler.List)
		protected.POST("/meridians/:id/statuses", statusHandler.Create)
		protected.PATCH("/statuses/:id", statusHandler.Update)
		protected.DELETE("/statuses/:id", statusHandler.Delete)

		// Members
		protected.GET("/meridians/:id/members", memberHandler.List)
		protected.POST("/meridians/:id/members", memberHandler.Add)
		protected.PATCH("/meridians/:id/members/:userId", memberHandler.ChangeRole)
		protected.DELETE("/meridians/:id/members/:userId", memberHandler.Remove)

		// Work items
		protected.POST("/items", itemHandler.Create)
		protected.PATCH("/items/:id", itemHandler.Update)
		protected.DELETE("/items/:id", itemHandler.Delete)
		protected.GET("/items/:id/activity", itemHandler.ListActivity)
		protected.POST("/items/:id/activity", itemHandler.Comment)

		// Sprints
		protected.POST("/sprints", sprintHandler.Create)
		protected.PATCH("/sprints/:id", sprintHandler.Update)
		protected.DELETE("/sprints/:id", sprintHandler.Delete)

		// Invitations
		protected.GET("/meridians/:id/invitations", invitationHandler.ListPending)
		protected.POST("/meridians/:id/invitations", invitationHandler.Create)
		protected.DELETE("/invitations/:token", invitationHandler.Revoke)
		token := protected.Group("/invitations/:token", tokenLimiter.Middleware())
		{
			token.GET("", invitationHandler.Preview)
			token.POST("/accept", invitationHandler.Accept)
		}

		// Users
		protected.GET("/users/me", userHandler.Me)
		protected.PATCH("/users/me", userHandler.UpdateMe)
	}
}
