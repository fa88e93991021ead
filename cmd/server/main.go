package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irt-tools/cat-service/internal/cache"
	"github.com/irt-tools/cat-service/internal/config"
	"github.com/irt-tools/cat-service/internal/handlers"
	"github.com/irt-tools/cat-service/internal/i18n"
	"github.com/irt-tools/cat-service/internal/repositories/postgres"
	"github.com/irt-tools/cat-service/internal/services"
	"github.com/irt-tools/cat-service/internal/utils"
	"github.com/irt-tools/cat-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.LogError(err, "Failed to connect to database")
		os.Exit(1)
	}
	if err := postgres.AutoMigrate(db); err != nil {
		logger.LogError(err, "Failed to run migrations")
		os.Exit(1)
	}

	repo := postgres.NewRepository(db)
	defer repo.Close()

	// Redis is optional; without it sessions resume from the database only.
	var sessionCache cache.SessionCache = cache.NoopCache{}
	if redisClient, err := pkg.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, session snapshots disabled", "error", err)
	} else {
		sessionCache = cache.NewRedisCache(redisClient, logger)
		defer redisClient.Close()
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	publisher, err := cfg.Events.CreateEventPublisher(slogLogger)
	if err != nil {
		logger.LogError(err, "Failed to create event publisher")
		os.Exit(1)
	}
	defer publisher.Close()

	validator := utils.NewValidator()
	serviceManager := services.NewServiceManager(repo, sessionCache, publisher, cfg, logger, validator)
	handlerManager := handlers.NewHandlerManager(serviceManager, i18n.NewCatalog(), validator, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError(err, "Server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.LogError(err, "Forced shutdown")
	}
	logger.Info("Server stopped")
}
