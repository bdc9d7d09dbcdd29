package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"translation-server/internal/config"
	"translation-server/internal/database"
	"translation-server/internal/handler"
	"translation-server/internal/logger"
	"translation-server/internal/messaging"
	"translation-server/internal/middleware"
	"translation-server/internal/repository"
	"translation-server/internal/service"
)

func main() {
	// --- Загрузка .env (опционально, в production конфиг приходит из окружения) ---
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	// --- Конфигурация ---
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	// --- Логгер ---
	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "json"})
	if err != nil {
		zap.L().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)
	zapLogger.Info("Translation Server starting...")

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// --- PostgreSQL ---
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 15*time.Second)
	pool, err := database.NewPool(dbCtx, cfg.GetDSN())
	dbCancel()
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	zapLogger.Info("Database connection pool established")

	if err := database.ApplyMigrations(rootCtx, pool); err != nil {
		zapLogger.Fatal("Failed to apply database migrations", zap.Error(err))
	}

	// --- Redis (кэш content store) ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	pingCtx, pingCancel := context.WithTimeout(rootCtx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	pingCancel()
	defer redisClient.Close()
	zapLogger.Info("Redis connection established", zap.String("addr", cfg.RedisAddr))

	// --- RabbitMQ ---
	mqConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()
	zapLogger.Info("RabbitMQ connection established")

	eventPub, err := messaging.NewRabbitMQEventPublisher(mqConn, cfg.ClientUpdatesQueueName)
	if err != nil {
		zapLogger.Fatal("Failed to create client updates publisher", zap.Error(err))
	}

	// --- Репозитории ---
	storyRepo := repository.NewPgStoryRepository(pool, zapLogger)
	translationRepo := repository.NewPgTranslationRepository(pool, zapLogger)
	contentStore := repository.NewCachedContentStore(
		repository.NewPgContentStore(pool, zapLogger),
		redisClient, cfg.ContentCacheTTL, zapLogger,
	)
	assetRepo := repository.NewPgAssetRepository(pool, zapLogger)

	// --- Сервисы ---
	translationSvc := service.NewTranslationService(storyRepo, translationRepo, contentStore, eventPub, zapLogger)
	resolver := service.NewFallbackResolver(storyRepo, translationRepo, contentStore, zapLogger)
	assetResolver := service.NewAssetResolver(assetRepo, zapLogger)
	synchronizer := service.NewSynchronizer(storyRepo, translationRepo, eventPub, zapLogger)
	reaper := service.NewReaper(translationRepo, translationSvc, cfg.ProgressTTL, cfg.ReaperInterval, zapLogger)

	// --- Консьюмеры ---
	progressConsumer := messaging.NewConsumer(
		mqConn, messaging.NewProgressProcessor(translationSvc),
		cfg.ProgressQueueName, "translation-progress-consumer",
	)
	masterUpdatesConsumer := messaging.NewConsumer(
		mqConn, messaging.NewMasterUpdateProcessor(synchronizer),
		cfg.MasterUpdatesQueueName, "master-updates-consumer",
	)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.ZapLoggingMiddleware(zapLogger))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Internal-Service-Token"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	translationHandler := handler.NewTranslationHandler(
		resolver, assetResolver, translationSvc, synchronizer,
		zapLogger, cfg.InterServiceSecret,
	)
	translationHandler.RegisterRoutes(router)

	// Prometheus middleware применяется после регистрации роутов.
	p.Use(router)

	// --- Фоновые процессы ---
	go func() {
		zapLogger.Info("Starting translation progress consumer...")
		if err := progressConsumer.StartConsuming(); err != nil {
			zapLogger.Error("Progress consumer stopped with error", zap.Error(err))
		}
	}()
	go func() {
		zapLogger.Info("Starting master updates consumer...")
		if err := masterUpdatesConsumer.StartConsuming(); err != nil {
			zapLogger.Error("Master updates consumer stopped with error", zap.Error(err))
		}
	}()
	go reaper.Run(rootCtx)

	// --- HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutdown signal received, stopping server...")

	rootCancel()
	progressConsumer.Stop()
	masterUpdatesConsumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown error", zap.Error(err))
	}

	zapLogger.Info("Translation Server stopped")
}
