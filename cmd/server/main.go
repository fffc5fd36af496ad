package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ritmofit/backend/config"
	"ritmofit/backend/internal/api/handler"
	"ritmofit/backend/internal/api/router"
	"ritmofit/backend/internal/job"
	"ritmofit/backend/internal/repository"
	"ritmofit/backend/internal/service"
	"ritmofit/backend/pkg/database"
	"ritmofit/backend/pkg/jwt"
	applogger "ritmofit/backend/pkg/logger"
	"ritmofit/backend/pkg/mailer"
	"ritmofit/backend/pkg/redis"
)

func main() {
	// 0. 本地开发时读取 .env（文件不存在则忽略）
	_ = godotenv.Load()

	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log, "ritmofit-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Booking.Timezone),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	// 接口字段必须保持无类型 nil，避免 typed-nil 绕过下游判空
	deps := service.Deps{Clock: time.Now}
	routerDeps := router.Deps{Ready: sqlDB.Ping}
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、限流与筛选项缓存将不可用", zap.Error(err))
		rdb = nil
	} else {
		deps.Cache = rdb
		deps.Blacklist = rdb
		routerDeps.Blacklist = rdb
		routerDeps.Limiter = rdb
	}

	// 5. 邮件与通知
	deps.Notifier = service.NewNotifier(mailer.New(&cfg.Mail, logger), cfg.Booking.Locale, logger)

	// 6. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	routerDeps.JWT = jwtMgr

	repo := repository.NewRepository(db, cfg.Database.TxMaxRetries, logger)
	svc := service.NewService(cfg, repo, jwtMgr, deps, logger)
	h := handler.NewHandler(svc)

	// 7. 初始化路由
	engine, err := router.Setup(cfg, h, routerDeps, logger)
	if err != nil {
		logger.Fatal("初始化路由失败", zap.Error(err))
	}

	// 8. 课前提醒（功能开关）
	stopJobs := func() {}
	if cfg.Feature.ClassRemindersEnabled {
		reminder := job.NewReminderJob(repo, deps.Notifier, cfg.Feature.ReminderLeadTime, cfg.Booking.Location(), time.Now, logger)
		scheduler, err := job.NewScheduler(reminder, logger)
		if err != nil {
			logger.Fatal("注册课前提醒任务失败", zap.Error(err))
		}
		scheduler.Start()
		stopJobs = func() {
			<-scheduler.Stop().Done()
			logger.Info("定时任务已停止")
		}
	}

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	stopJobs()

	sqlDB.Close()

	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
