package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/shop-backend/internal/cache"
	"github.com/ignatzorin/shop-backend/internal/config"
	"github.com/ignatzorin/shop-backend/internal/db"
	"github.com/ignatzorin/shop-backend/internal/gateway"
	"github.com/ignatzorin/shop-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/shop-backend/internal/http/handlers"
	"github.com/ignatzorin/shop-backend/internal/http/middleware"
	httpRouter "github.com/ignatzorin/shop-backend/internal/http/router"
	"github.com/ignatzorin/shop-backend/internal/logger"
	"github.com/ignatzorin/shop-backend/internal/notify"
	"github.com/ignatzorin/shop-backend/internal/oauth"
	"github.com/ignatzorin/shop-backend/internal/repository"
	"github.com/ignatzorin/shop-backend/internal/service"
	"github.com/ignatzorin/shop-backend/internal/storage"
	"github.com/ignatzorin/shop-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Env)
	goroutine.SetLogger(logger.RecoveryLogger())
	mainLog := logger.Component("main")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPool)
	if err != nil {
		mainLog.Fatalf("ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		mainLog.Fatalf("ошибка миграций: %v", err)
	}

	// Redis необязателен: без него лимитер и OAuth state живут в памяти процесса.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			mainLog.Fatalf("ошибка подключения к redis: %v", err)
		}
		defer redisClient.Close()
	}

	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		mainLog.Fatalf("не удалось создать хранилище лимитера: %v", err)
	}

	var states oauth.StateStore
	if redisClient != nil {
		states = oauth.NewRedisStateStore(redisClient)
	} else {
		states = oauth.NewMemoryStateStore(cache.NewMemory(ctx, time.Minute))
	}

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		mainLog.Fatalf("не удалось подготовить файловое хранилище: %v", err)
	}

	// Доставка OTP.
	var sender notify.Sender = notify.NewLogSender()
	if cfg.SMTP.Enabled() {
		sender = notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else if cfg.Env == "production" {
		mainLog.Warn("SMTP не настроен, коды подтверждения пишутся только в лог")
	}
	dispatcher := notify.NewDispatcher(sender, cfg.NotifyTimeout, cfg.OTPTTL)

	// Репозитории.
	accountRepo := repository.NewAccountRepository(dbConn)
	productRepo := repository.NewProductRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	notificationService := service.NewNotificationService(notificationRepo)

	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(notificationService)
	goroutine.SafeGo(hub.Run)

	accountService := service.NewAccountService(accountRepo, tokenManager, dispatcher, cfg.OTPTTL)
	productService := service.NewProductService(productRepo)
	paymentService := service.NewPaymentService(
		paymentRepo,
		productRepo,
		accountRepo,
		gateway.NewClient(cfg.Payment.BaseURL, cfg.Payment.SecretKey, cfg.Payment.Timeout),
		hub,
		service.PaymentOptions{
			Currency:        cfg.Payment.Currency,
			RedirectURL:     cfg.Payment.RedirectURL,
			NotificationURL: cfg.PublicBaseURL + "/api/v1/verify-payment/webhook",
			GatewayTimeout:  cfg.Payment.Timeout,
		},
	)

	var oauthHandler *httpHandlers.OAuthHandler
	if cfg.Google.Enabled() {
		google := oauth.NewOIDCProvider(oauth.ProviderConfig{
			Name:         oauth.ProviderGoogle,
			IssuerURL:    cfg.Google.IssuerURL,
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		}, nil)
		oauthHandler = httpHandlers.NewOAuthHandler(service.NewOAuthService(states, accountService, google))
	} else {
		mainLog.Info("вход через Google отключён")
	}

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Accounts:      httpHandlers.NewAccountHandler(accountService, photoStorage),
		OAuth:         oauthHandler,
		Products:      httpHandlers.NewProductHandler(productService),
		Payments:      httpHandlers.NewPaymentHandler(paymentService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:        httpHandlers.NewHealthHandler(dbConn, redisClient),
	}, tokenManager, limiterStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLog.Errorf("ошибка остановки http сервера: %v", err)
		}
	})

	mainLog.Infof("HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		mainLog.Fatalf("сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Component("main").Errorf("ошибка закрытия базы: %v", err)
	}
}
