package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/storefront/backend/internal/config"
	"github.com/storefront/backend/internal/service"
	"go.uber.org/zap"
)

type RouterDeps struct {
	App      config.AppConfig
	Auth     *service.AuthService
	Recovery *service.RecoveryService
	Admin    *service.UserAdminService
	DB       Pinger
	Limiter  *IPRateLimiter
	Logger   *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	useJSONFieldNames()

	router := gin.New()
	if err := router.SetTrustedProxies(d.App.TrustedProxies); err != nil {
		d.Logger.Error("Invalid TRUSTED_PROXIES, forwarding headers ignored", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), RequestLogger(d.Logger))
	router.Use(CORSMiddleware(d.App.CORSAllowedOrigins, true))

	router.GET("/ping", Ping)
	router.GET("/", Root)
	router.GET("/healthz", Healthz(d.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/openapi.json", OpenAPIDoc)

	gate := NewGate(d.Auth, d.Logger)
	auth := NewAuthHandler(d.Auth, d.Recovery, SessionCookies{Secure: d.App.Production()}, d.Logger)
	admin := NewUserHandler(d.Admin, d.Logger)

	var throttle gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		throttle = d.Limiter.Middleware()
	}

	users := router.Group("/api/users")
	{
		users.POST("/register", throttle, auth.Register)
		users.POST("/login", throttle, auth.Login)
		users.POST("/logout", gate.OptionalAuth(), auth.Logout)
		users.POST("/refresh-token", gate.RequireRefresh(), auth.RefreshToken)
		users.GET("/session", gate.OptionalAuth(), auth.Session)
		users.POST("/forgot-password", throttle, auth.ForgotPassword)
		users.POST("/verify-otp", throttle, auth.VerifyOTP)
		users.POST("/reset-password", throttle, auth.ResetPassword)

		users.GET("/me", gate.RequireAuth(), auth.Me)
		users.PUT("/update-profile", gate.RequireAuth(), auth.UpdateProfile)
		users.PUT("/update-password", gate.RequireAuth(), auth.UpdatePassword)

		adminOnly := users.Group("", gate.RequireAuth(), RequireRole("admin"))
		adminOnly.GET("", admin.ListUsers)
		adminOnly.GET("/:id", admin.GetUser)
		adminOnly.PUT("/:id/role", admin.UpdateRole)
		adminOnly.PUT("/:id/lock", admin.UpdateLock)
		adminOnly.DELETE("/:id", admin.DeleteUser)
	}

	return router
}
