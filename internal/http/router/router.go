package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/shop-backend/internal/config"
	"github.com/ignatzorin/shop-backend/internal/http/handlers"
	"github.com/ignatzorin/shop-backend/internal/http/middleware"
)

// Handlers собирает все хэндлеры, которые монтирует роутер.
// OAuth может быть nil, если вход через провайдера не настроен.
type Handlers struct {
	Accounts      *handlers.AccountHandler
	OAuth         *handlers.OAuthHandler
	Products      *handlers.ProductHandler
	Payments      *handlers.PaymentHandler
	Notifications *handlers.NotificationHandler
	WS            *handlers.WSHandler
	Health        *handlers.HealthHandler
}

func SetupRouter(
	cfg *config.Config,
	h Handlers,
	tokens middleware.AccessTokenParser,
	limiterStore limiter.Store,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api/v1")
	requireAuth := middleware.AuthMiddleware(tokens)

	// Публичные маршруты аккаунта под лимитом
	authRateLimit := middleware.RateLimitMiddleware(limiterStore, cfg.RateLimitLimit, cfg.RateLimitPeriod)
	public := api.Group("/")
	public.Use(authRateLimit)
	{
		public.POST("/register", h.Accounts.Register)
		public.POST("/verify", h.Accounts.Verify)
		public.POST("/resend-otp", h.Accounts.ResendOTP)
		public.POST("/login", h.Accounts.Login)
		public.POST("/refresh", h.Accounts.Refresh)

		if h.OAuth != nil {
			public.GET("/auth/:provider", h.OAuth.Begin)
			public.GET("/auth/:provider/callback", h.OAuth.Callback)
		}
	}

	// Каталог
	api.GET("/products", h.Products.List)
	api.GET("/products/:id", middleware.UUIDValidator("id"), h.Products.Get)

	// Сверка платежа. Вебхук проверяется по подписи, а не по токену.
	api.GET("/verify-payment", h.Payments.Verify)
	api.POST("/verify-payment/webhook", h.Payments.Webhook)

	api.GET("/ws", h.WS.Handle)

	protected := api.Group("/")
	protected.Use(requireAuth)
	{
		protected.GET("/me", h.Accounts.Me)
		protected.GET("/users", middleware.RequireAdmin(), h.Accounts.List)

		protected.POST("/create-product", middleware.RequireAdmin(), h.Products.Create)

		protected.POST("/make-payment/:id", middleware.UUIDValidator("id"), h.Payments.Initialize)
		protected.GET("/payments/my", h.Payments.ListMine)

		protected.GET("/notifications", h.Notifications.List)
		protected.GET("/notifications/unread/count", h.Notifications.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkAsRead)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllAsRead)
	}

	return r
}
