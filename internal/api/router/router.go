// Package router sets up the API routes for the application.
package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/reviewflow/reviewflow/consts"
	"github.com/reviewflow/reviewflow/internal/api/handler"
	"github.com/reviewflow/reviewflow/internal/api/middleware"
	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/database"
	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/internal/queue"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/internal/tasks"
)

// Deps carries the components the routes are built on.
type Deps struct {
	Store   store.Store
	Queue   *queue.Queue
	Tasks   *tasks.Service
	Clients *platform.Factory
}

// Setup configures all API routes.
func Setup(r *gin.Engine, cfg *config.Config, deps Deps) {
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(&middleware.LoggerConfig{
		AccessLog: cfg.Logging.AccessLog,
	}))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(cfg.Server.Debug))
	r.Use(otelgin.Middleware(consts.ServiceName))

	// Health check endpoint (public). Degrades to 503 when the database
	// or queue backend is unreachable.
	r.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := deps.Queue.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "queue": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// Webhook routes (public, protected by signature validation instead)
	webhookHandler := handler.NewWebhookHandler(deps.Clients, deps.Store, deps.Tasks, cfg.Git)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/:platform", webhookHandler.HandleWebhook)
	}

	// Auth routes
	authHandler := handler.NewAuthHandler(cfg.Admin)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWTAuth(authHandler), authHandler.Me)
	}

	// Task routes - protected by JWT authentication
	taskHandler := handler.NewTaskHandler(deps.Store, deps.Tasks, deps.Queue)
	tasksGroup := v1.Group("/tasks")
	tasksGroup.Use(middleware.JWTAuth(authHandler))
	{
		tasksGroup.GET("", taskHandler.List)
		tasksGroup.GET("/:id", taskHandler.Get)
	}

	// Task log routes share the tasks group but read from the separate
	// log database. Skipped when the log database is not initialized.
	if taskLogDB := database.GetTaskLogDB(); taskLogDB != nil {
		taskLogHandler := handler.NewTaskLogHandler(store.NewTaskLogStore(taskLogDB))
		tasksGroup.GET("/:id/logs", taskLogHandler.GetTaskLogs)
	}

	// Project routes - protected by JWT authentication
	projectHandler := handler.NewProjectHandler(deps.Store)
	projects := v1.Group("/projects")
	projects.Use(middleware.JWTAuth(authHandler))
	{
		projects.GET("", projectHandler.List)
		projects.GET("/:id", projectHandler.Get)
		projects.POST("", projectHandler.Create)
		projects.PUT("/:id", projectHandler.Update)
		projects.DELETE("/:id", projectHandler.Delete)
	}

	// Template routes - protected by JWT authentication
	templateHandler := handler.NewTemplateHandler(deps.Store)
	templates := v1.Group("/templates")
	templates.Use(middleware.JWTAuth(authHandler))
	{
		templates.GET("", templateHandler.List)
		templates.GET("/:id", templateHandler.Get)
		templates.POST("", templateHandler.Create)
		templates.PUT("/:id", templateHandler.Update)
		templates.DELETE("/:id", templateHandler.Delete)
	}

	// Stats endpoint - protected by JWT authentication
	statsHandler := handler.NewStatsHandler(deps.Store, deps.Queue)
	v1.GET("/stats", middleware.JWTAuth(authHandler), statsHandler.GetOverview)

	// Admin queue controls - protected by JWT authentication
	admin := v1.Group("/admin")
	admin.Use(middleware.JWTAuth(authHandler))
	{
		admin.POST("/tasks/:id/requeue", taskHandler.Requeue)
		admin.POST("/tasks/:id/release-lock", taskHandler.ReleaseLock)
		admin.GET("/tasks/:id/lock", taskHandler.LockStatus)
		admin.DELETE("/tasks/:id", taskHandler.Delete)
		admin.GET("/queue/status", func(c *gin.Context) {
			size, err := deps.Queue.Size(c.Request.Context())
			if err != nil {
				c.JSON(503, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"status": "ok", "size": size})
		})
	}
}
