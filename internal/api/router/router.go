package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ritmofit/backend/config"
	"ritmofit/backend/internal/api/handler"
	"ritmofit/backend/internal/api/middleware"
	"ritmofit/backend/internal/model"
	"ritmofit/backend/pkg/jwt"
)

// Deps 路由依赖的外部组件
// Blacklist 与 Limiter 在 Redis 不可用时为 nil，相关中间件降级放行
type Deps struct {
	JWT       *jwt.Manager
	Blacklist middleware.TokenChecker
	Limiter   middleware.Limiter
	// Ready 健康检查时探测依赖（数据库）是否可用，可为 nil
	Ready func() error
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, deps Deps, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				c.JSON(503, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// 认证模块（无需认证，按 IP 限流）
		auth := api.Group("/auth")
		auth.Use(middleware.RateLimit(deps.Limiter, cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow))
		{
			auth.POST("/register-send-otp", h.Auth.RegisterSendOTP)
			auth.POST("/login-send-otp", h.Auth.LoginSendOTP)
			auth.POST("/verify-otp-and-login", h.Auth.VerifyOTPAndLogin)
			auth.POST("/request-password-reset", h.Auth.RequestPasswordReset)
			auth.POST("/reset-password", h.Auth.ResetPassword)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 需要认证的路由
		authorized := api.Group("")
		authorized.Use(middleware.JWTAuth(deps.JWT, deps.Blacklist, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 会员资料（仅本人，Service 层鉴权）
			authorized.GET("/profile/:userId", h.Profile.GetProfile)
			authorized.PUT("/profile/:userId", h.Profile.UpdateProfile)

			// 课程模块
			authorized.GET("/filters", h.Class.GetFilters)
			classes := authorized.Group("/classes")
			{
				classes.GET("", h.Class.ListClasses)
				classes.GET("/:id", h.Class.GetClass)
				classes.POST("", middleware.RoleAuth(model.RoleAdmin), h.Class.CreateClass)
				classes.PUT("/:id", middleware.RoleAuth(model.RoleAdmin), h.Class.UpdateClass)
				classes.DELETE("/:id", middleware.RoleAuth(model.RoleAdmin), h.Class.DeleteClass)
			}

			// 预约模块（:id 在列表与日历中为会员ID，在取消与出勤中为预约ID）
			reservations := authorized.Group("/reservations")
			{
				reservations.POST("", h.Reservation.CreateReservation)
				reservations.GET("/:id", h.Reservation.ListActive)
				reservations.GET("/:id/calendar.ics", h.Export.CalendarICS)
				reservations.POST("/cancel/:id", h.Reservation.CancelReservation)
				reservations.POST("/:id/attend", middleware.RoleAuth(model.RoleAdmin), h.Reservation.Attend)
			}

			// 历史记录
			history := authorized.Group("/history")
			{
				history.GET("/:userId", h.Reservation.History)
				history.GET("/:userId/export", h.Export.ExportHistory)
			}
		}
	}

	return r, nil
}
