package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"budget-control/backend/config"
	"budget-control/backend/internal/api/handler"
	"budget-control/backend/internal/api/router"
	"budget-control/backend/internal/repository"
	"budget-control/backend/internal/service"
	"budget-control/backend/pkg/database"
	"budget-control/backend/pkg/jwt"
	applogger "budget-control/backend/pkg/logger"
	"budget-control/backend/pkg/redis"
)

func main() {
	// 1. 加载配置（BUDGET_CONFIG_FILE 可指定配置文件路径）
	cfg, err := config.Load(os.Getenv("BUDGET_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("预算管控服务启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.App.Timezone),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（失败时降级：不做 Token 黑名单与限流）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, logger)
	h := handler.NewHandler(svc, logger)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.Auth.EnsureBootstrapAdmin(bootCtx); err != nil {
		logger.Fatal("初始化管理员失败", zap.Error(err))
	}
	cancelBoot()

	// 6. 路由与 HTTP 服务器
	engine := router.Setup(cfg, h, jwtMgr, rdb, db, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second, // 工资 xlsx 上传
		WriteTimeout:      60 * time.Second, // 对账与对比导出
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 7. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
