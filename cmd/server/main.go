package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/clock"
	"github.com/Bright-River-CGI/lifestyle-app/internal/config"
	"github.com/Bright-River-CGI/lifestyle-app/internal/database"
	"github.com/Bright-River-CGI/lifestyle-app/internal/handlers"
	"github.com/Bright-River-CGI/lifestyle-app/internal/logger"
	"github.com/Bright-River-CGI/lifestyle-app/internal/metrics"
	"github.com/Bright-River-CGI/lifestyle-app/internal/migrations"
	"github.com/Bright-River-CGI/lifestyle-app/internal/redis"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"github.com/Bright-River-CGI/lifestyle-app/internal/services"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: the level and format come from the config.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{ServiceName: "lifestyle-app", Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		log.Fatal("invalid SNOWFLAKE_NODE", zap.Int64("node", cfg.SnowflakeNode), zap.Error(err))
	}
	policy, err := access.New()
	if err != nil {
		log.Fatal("failed to build access policy", zap.Error(err))
	}
	clk := clock.New()
	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	propRepo := repository.NewPropRepository(db)

	// Initialize services
	userService := services.NewUserService(services.UserServiceParams{
		Users:       userRepo,
		Sessions:    redisClient,
		IDs:         node,
		Clock:       clk,
		Metrics:     orderMetrics,
		Logger:      log,
		SessionTTL:  time.Duration(cfg.SessionTimeout) * time.Second,
		StaffDomain: cfg.StaffEmailDomain,
	})
	libraryService := services.NewLibraryService(propRepo, policy, node, log)
	orderService := services.NewOrderService(services.OrderServiceParams{
		Orders:   orderRepo,
		Props:    propRepo,
		Policy:   policy,
		IDs:      node,
		Clock:    clk,
		Locker:   redisClient,
		Metrics:  orderMetrics,
		Logger:   log,
		LockTTL:  cfg.OrderLockTTL,
		LockWait: cfg.OrderLockWait,
	})

	if err := migrations.RunMigrations(ctx, db, migrations.Options{
		Users:            userService,
		Library:          libraryService,
		EmployeeEmail:    cfg.SeedEmployeeEmail,
		EmployeePassword: cfg.SeedEmployeePassword,
	}, log); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Setup routes
	gin.SetMode(cfg.GinMode)
	apiHandler := handlers.NewAPIHandler(userService, orderService, libraryService, policy)
	router := handlers.NewRouter(apiHandler, log, handlers.RouterConfig{
		Metrics: promhttp.Handler(),
		Health: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
