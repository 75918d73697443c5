package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waitly/api/routes"
	"waitly/internal/notifications"
	"waitly/internal/ranking"
	"waitly/internal/referrals"
	"waitly/internal/scoring"
	"waitly/internal/shared/config"
	"waitly/internal/shared/database"
	"waitly/internal/shared/database/migrations"
	"waitly/internal/shared/middleware"
	"waitly/pkg/logger"
	"waitly/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	appLogger = logger.NewWithLevel(cfg.LogLevel)
	logger.SetDefault(appLogger)

	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("Failed to connect to databases", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Migrate(db.GetPostgreSQL()); err != nil {
		appLogger.Error("Failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	// Notifications go to Kafka when brokers are configured, to the log otherwise
	var publisher notifications.Publisher = notifications.NewLogPublisher()
	if cfg.Kafka.Enabled() {
		producerConfig := notifications.DefaultKafkaProducerConfig()
		producerConfig.Brokers = cfg.Kafka.Brokers
		producerConfig.Topic = cfg.Kafka.NotificationTopic

		kafkaPublisher, err := notifications.NewKafkaPublisher(producerConfig)
		if err != nil {
			appLogger.Error("Failed to create Kafka publisher, falling back to log publisher", slog.Any("error", err))
		} else {
			publisher = kafkaPublisher
			defer func() {
				if err := kafkaPublisher.Close(); err != nil {
					appLogger.Error("Error closing Kafka publisher", slog.Any("error", err))
				}
			}()
		}
	}
	notifier := notifications.NewService(publisher)

	services := routes.NewServices(cfg, db, notifier)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Position sweeper
	rankingJobs := ranking.NewJobProcessor(services.Ranking, nil)
	rankingJobs.Start(workerCtx)
	defer rankingJobs.Stop()

	// Nightly ledger reconciliation
	if cfg.Scoring.ReconcileEnabled {
		reconcilerConfig := scoring.DefaultReconcilerConfig()
		reconcilerConfig.Schedule = cfg.Scoring.ReconcileSchedule
		reconcilerConfig.LockTTL = cfg.Redis.LockTTL

		reconciler := scoring.NewReconciler(services.Scoring, services.RankingRepo, db.GetRedisClient(), reconcilerConfig)
		if err := reconciler.Start(); err != nil {
			appLogger.Error("Failed to start score reconciliation", slog.Any("error", err))
		} else {
			defer reconciler.Stop()
		}
	}

	// Referral events from upstream systems
	if cfg.Kafka.Enabled() {
		consumerConfig := referrals.DefaultConsumerConfig()
		consumerConfig.Brokers = cfg.Kafka.Brokers
		consumerConfig.GroupID = cfg.Kafka.ConsumerGroupID
		consumerConfig.Topics = []string{cfg.Kafka.ReferralEventsTopic}
		consumerConfig.Workers = cfg.Kafka.ConsumerWorkers

		consumer, err := referrals.NewKafkaConsumer(consumerConfig, services.Referrals)
		if err != nil {
			appLogger.Error("Failed to create referral event consumer", slog.Any("error", err))
		} else {
			consumer.Start(workerCtx)
			defer func() {
				if err := consumer.Stop(); err != nil {
					appLogger.Error("Error stopping referral event consumer", slog.Any("error", err))
				}
			}()
		}
	}

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			PublicRequests:  cfg.RateLimit.PublicRequests,
			SignupRequests:  cfg.RateLimit.SignupRequests,
			AdminRequests:   cfg.RateLimit.AdminRequests,
			HealthRequests:  cfg.RateLimit.HealthRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	router := setupRouter(cfg, db, services, rateLimiter, map[string]routes.JobStatusProvider{
		"ranking": rankingJobs,
	})

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", cfg.GetAPIBasePath()),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.Bool("kafka", cfg.Kafka.Enabled()),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, services *routes.Services, rateLimiter *ratelimit.RateLimiter,
	jobs map[string]routes.JobStatusProvider) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(middleware.RequestLogger(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter := routes.NewRouter(cfg, db, services, jobs)
	appRouter.SetupRoutes(engine)

	return engine
}
