package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sharath018/field-visit-backend/config"
	"github.com/sharath018/field-visit-backend/internal/auditlog"
	"github.com/sharath018/field-visit-backend/internal/auth"
	"github.com/sharath018/field-visit-backend/internal/employee"
	"github.com/sharath018/field-visit-backend/internal/notification"
	"github.com/sharath018/field-visit-backend/internal/reports"
	"github.com/sharath018/field-visit-backend/internal/visit"
	"github.com/sharath018/field-visit-backend/middleware"
	"go.uber.org/zap"

	_ "github.com/sharath018/field-visit-backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Services are the application services the HTTP layer exposes.
type Services struct {
	Audit         auditlog.Service
	Auth          auth.Service
	Employees     employee.Service
	Visits        visit.Service
	Notifications notification.Service
	Reports       reports.Service
}

// Setup registers every route on r. rdb may be nil.
func Setup(r *gin.Engine, cfg *config.Config, svc Services, rdb *redis.Client, logger *zap.Logger) error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := visit.RegisterValidators(v); err != nil {
			return err
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.Static("/uploads", cfg.UploadDir)

	limit, err := middleware.RateLimiter(cfg.RateLimitPerMinute, rdb)
	if err != nil {
		return err
	}

	api := r.Group("/api/v1")
	api.Use(limit)
	api.Use(middleware.AuditMiddleware())

	// ========== Auth ==========
	authHandler := auth.NewHandler(svc.Auth, logger)
	employeeHandler := employee.NewHandler(svc.Employees, logger)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.GET("/employee-id/:id/available", authHandler.CheckEmployeeID)
	}
	// Registration validates the employee id before an account exists.
	api.GET("/employees/:id/validate", employeeHandler.Validate)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(svc.Auth))

	protected.GET("/users/me", authHandler.Me)
	protected.PUT("/users/profile", authHandler.UpdateProfile)
	protected.GET("/employees/verify", employeeHandler.Verify)

	// ========== Visits ==========
	visitHandler := visit.NewHandler(svc.Visits, cfg.UploadDir, logger)
	reportsHandler := reports.NewHandler(svc.Reports, logger)

	visits := protected.Group("/visits")
	{
		visits.GET("", visitHandler.ListVisits)
		visits.GET("/pending", visitHandler.ListPending)
		visits.GET("/submitted", visitHandler.ListSubmitted)
		visits.GET("/approved", visitHandler.ListApproved)
		visits.GET("/overdue", visitHandler.ListOverdue)
		visits.GET("/counts", visitHandler.Counts)
		visits.GET("/:id", visitHandler.GetVisit)
		visits.GET("/:id/verify-employee", visitHandler.VerifyEmployee)
		visits.GET("/:id/export", reportsHandler.ExportVisit)

		visits.POST("", visitHandler.CreateVisit)
		visits.PUT("/:id", visitHandler.UpdateVisit)
		visits.POST("/:id/submit", visitHandler.SubmitVisit)
		visits.PATCH("/:id/status", visitHandler.SetStatus)
		visits.PATCH("/:id/repost", visitHandler.RepostVisit)
		visits.POST("/:id/approve", visitHandler.ApproveVisit)
		visits.POST("/:id/reject", visitHandler.RejectVisit)
	}

	protected.GET("/reports/visits", reportsHandler.VisitRegister)

	// ========== Notifications ==========
	notificationHandler := notification.NewHandler(svc.Notifications, rdb, logger)

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/stream", notificationHandler.Stream)
		notifications.PATCH("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.POST("/devices", notificationHandler.RegisterDevice)
		notifications.DELETE("/devices", notificationHandler.RemoveDevice)
	}

	// ========== Audit Logs (Admin only) ==========
	auditHandler := auditlog.NewHandler(svc.Audit)

	auditRoutes := protected.Group("/auditlogs")
	auditRoutes.Use(middleware.RequireAdmin())
	{
		auditRoutes.GET("", auditHandler.GetAuditLogs)
		auditRoutes.GET("/stats", auditHandler.GetAuditLogStats)
		auditRoutes.GET("/:id", auditHandler.GetAuditLogByID)
	}

	return nil
}
