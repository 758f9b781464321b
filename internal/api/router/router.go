package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"budget-control/backend/config"
	"budget-control/backend/internal/api/handler"
	"budget-control/backend/internal/api/middleware"
	"budget-control/backend/internal/model"
	"budget-control/backend/pkg/jwt"
	"budget-control/backend/pkg/redis"
)

// 角色组合
var (
	adminOnly   = []string{model.RoleAdmin}
	submitters  = []string{model.RoleAdmin, model.RoleEditor}
	payrollTeam = []string{model.RoleAdmin, model.RolePayroll}
)

// Setup 初始化并返回 Gin 路由引擎
// db 仅用于健康检查，可为 nil
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 / 指标 ──
	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unavailable"})
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()); err != nil {
				status["redis"] = "unavailable"
			}
		}
		c.JSON(http.StatusOK, status)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limit := middleware.RateLimit(rdb, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", limit, h.Auth.Login)
			auth.POST("/refresh", limit, h.Auth.Refresh)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 用户管理
			users := authorized.Group("/users", middleware.RoleAuth(adminOnly...))
			{
				users.GET("", h.User.ListUsers)
				users.GET("/:id", h.User.GetUser)
				users.POST("", limit, h.User.CreateUser)
				users.PUT("/:id/role", limit, h.User.UpdateRole)
			}

			// 预算分段：所有角色可读，仅管理员直接写入
			tranches := authorized.Group("/tranches")
			{
				tranches.GET("", h.Tranche.ListTranches)
				tranches.GET("/overlaps", h.Tranche.ListOverlaps)
				tranches.GET("/overlap-check", h.Tranche.CheckOverlap)
				tranches.GET("/:id", h.Tranche.GetTranche)
				tranches.POST("", middleware.RoleAuth(adminOnly...), limit, h.Tranche.CreateTranche)
				tranches.PUT("/:id", middleware.RoleAuth(adminOnly...), limit, h.Tranche.UpdateTranche)
				tranches.DELETE("/:id", middleware.RoleAuth(adminOnly...), limit, h.Tranche.DeleteTranche)
			}

			// 变更申请
			changeRequests := authorized.Group("/change-requests")
			{
				changeRequests.GET("", h.ChangeRequest.List)
				changeRequests.GET("/counts", h.ChangeRequest.Counts)
				changeRequests.GET("/pending/:worker_id", h.ChangeRequest.PendingByWorker)
				changeRequests.GET("/:id", h.ChangeRequest.Get)
				changeRequests.POST("", middleware.RoleAuth(submitters...), limit, h.ChangeRequest.Submit)
				changeRequests.POST("/:id/approve", middleware.RoleAuth(adminOnly...), limit, h.ChangeRequest.Approve)
				changeRequests.POST("/:id/reject", middleware.RoleAuth(adminOnly...), limit, h.ChangeRequest.Reject)
			}

			// 快照
			snapshots := authorized.Group("/snapshots")
			{
				snapshots.GET("", h.Snapshot.List)
				snapshots.GET("/:id", h.Snapshot.Get)
				snapshots.GET("/:id/compare", h.Snapshot.Compare)
				snapshots.GET("/:id/compare/export", h.Export.ExportComparison)
				snapshots.POST("", middleware.RoleAuth(adminOnly...), limit, h.Snapshot.Freeze)
				snapshots.DELETE("/:id", middleware.RoleAuth(adminOnly...), limit, h.Snapshot.Delete)
			}

			// 对账
			reconciliation := authorized.Group("/reconciliation", middleware.RoleAuth(payrollTeam...))
			{
				reconciliation.GET("", h.Reconciliation.Reconcile)
				reconciliation.GET("/export", h.Export.ExportReconciliation)
			}

			// 实发工资
			payroll := authorized.Group("/payroll", middleware.RoleAuth(payrollTeam...))
			{
				payroll.GET("/template", h.Export.PayrollTemplate)
				payroll.GET("/periods", h.Payroll.Summary)
				payroll.POST("/import", limit, h.Payroll.Import)
				payroll.DELETE("/periods/:period", limit, h.Payroll.DeletePeriod)
			}

			// 审计日志
			audit := authorized.Group("/audit", middleware.RoleAuth(adminOnly...))
			{
				audit.GET("", h.Audit.Query)
				audit.GET("/stats", h.Audit.Stats)
			}

			// 通知
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.ListMine)
				notifications.GET("/unread-count", h.Notification.UnreadCount)
				notifications.POST("/read-all", h.Notification.MarkAllRead)
			}
		}
	}

	return r
}
