package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/gakuseki-api/api/swagger"
	"github.com/noah-isme/gakuseki-api/internal/handler"
	"github.com/noah-isme/gakuseki-api/internal/middleware"
	"github.com/noah-isme/gakuseki-api/internal/repository"
	"github.com/noah-isme/gakuseki-api/internal/service"
	"github.com/noah-isme/gakuseki-api/internal/worker"
	"github.com/noah-isme/gakuseki-api/pkg/cache"
	"github.com/noah-isme/gakuseki-api/pkg/config"
	"github.com/noah-isme/gakuseki-api/pkg/database"
	"github.com/noah-isme/gakuseki-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gakuseki-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gakuseki-api/pkg/middleware/requestid"
)

// @title Gakuseki API
// @version 0.1.0
// @description Student registry with a temporal enrollment, field and status model
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	cacheSvc := service.NewCacheService(nil, metricsSvc, cfg.Cache.TTL, logr, false)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
		}
	}

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	statusRepo := repository.NewStatusRepository(db)

	studentSvc := service.NewStudentService(studentRepo, enrollmentRepo, historyRepo, statusRepo,
		cacheSvc, validate, logr, time.Month(cfg.School.FiscalYearStartMonth))
	promotionSvc := service.NewPromotionService(enrollmentRepo, studentRepo, cacheSvc, metricsSvc,
		validate, logr, cfg.Database.TxTimeout)
	fieldSvc := service.NewFieldUpdateService(historyRepo, studentRepo, cacheSvc, metricsSvc,
		validate, logr, cfg.Database.TxTimeout)
	statusSvc := service.NewStatusService(statusRepo, studentRepo, cacheSvc, metricsSvc, validate, logr)

	studentHandler := handler.NewStudentHandler(studentSvc, fieldSvc)
	promotionHandler := handler.NewPromotionHandler(promotionSvc)
	statusHandler := handler.NewStatusHandler(statusSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		students := api.Group("/students")
		students.GET("", studentHandler.List)
		students.POST("", studentHandler.Create)
		students.GET("/export", studentHandler.Export)
		students.GET("/:id", studentHandler.Get)
		students.PATCH("/:id", studentHandler.ProposeChange)
		students.DELETE("/:id", studentHandler.Delete)
		students.GET("/:id/status", statusHandler.Current)
		students.POST("/:id/status", statusHandler.Change)

		promotions := api.Group("/promotions")
		promotions.GET("/plan", promotionHandler.Plan)
		promotions.POST("", promotionHandler.Promote)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sweeper *worker.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = worker.NewSweeper(fieldSvc, cfg.Sweep.Interval, cfg.Sweep.Workers, logr)
		sweeper.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if sweeper != nil {
		sweeper.Stop()
	}
}
