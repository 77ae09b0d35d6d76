package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/planloop/backend/api/handler"
)

type Handlers struct {
	Auth     *apiHandler.AuthHandler
	Profile  *apiHandler.ProfileHandler
	Activity *apiHandler.ActivityHandler
	Task     *apiHandler.TaskHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)

	// Public shared-plan route: anyone with the token can view the plan.
	r.GET("/api/v1/shared/{token}", handlers.Activity.GetShared)

	// Protected routes
	r.GET("/api/v1/profile", authMiddleware(handlers.Profile.GetProfile))
	r.PUT("/api/v1/profile", authMiddleware(handlers.Profile.UpdateProfile))

	r.GET("/api/v1/activities", authMiddleware(handlers.Activity.ListActivities))
	r.POST("/api/v1/activities", authMiddleware(handlers.Activity.CreateActivity))
	r.GET("/api/v1/activities/{id}", authMiddleware(handlers.Activity.GetActivity))
	r.POST("/api/v1/activities/{id}/archive", authMiddleware(handlers.Activity.ArchiveActivity))
	r.POST("/api/v1/activities/{id}/share", authMiddleware(handlers.Activity.ShareActivity))
	r.GET("/api/v1/activities/{id}/tasks", authMiddleware(handlers.Task.ListByActivity))

	r.POST("/api/v1/shared/{token}/copy", authMiddleware(handlers.Activity.CopyShared))

	r.PUT("/api/v1/tasks/{id}/complete", authMiddleware(handlers.Task.CompleteTask))

	return r
}
