package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/cemetery-api/api/swagger"
	"github.com/noah-isme/cemetery-api/internal/handler"
	"github.com/noah-isme/cemetery-api/internal/middleware"
	"github.com/noah-isme/cemetery-api/internal/repository"
	"github.com/noah-isme/cemetery-api/internal/service"
	"github.com/noah-isme/cemetery-api/pkg/cache"
	"github.com/noah-isme/cemetery-api/pkg/config"
	"github.com/noah-isme/cemetery-api/pkg/database"
	"github.com/noah-isme/cemetery-api/pkg/export"
	"github.com/noah-isme/cemetery-api/pkg/logger"
	"github.com/noah-isme/cemetery-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/cemetery-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/cemetery-api/pkg/middleware/requestid"
	"github.com/noah-isme/cemetery-api/pkg/storage"
)

// @title Cemetery API
// @version 1.0.0
// @description Plot registry with exhumation and reservation request workflows
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelConnect()

	db, err := database.NewPostgres(connectCtx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(connectCtx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, plot cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, "cemetery", logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks["redis"] = repo.Ping
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.PlotTTL, logr, cfg.Cache.Enabled)

	hub := service.NewEventHub(logr)
	for _, unsubscribe := range service.RegisterEventSubscribers(hub, cacheSvc, metrics, logr) {
		defer unsubscribe()
	}

	tx := repository.NewTxManager(db)
	plotRepo := repository.NewPlotRepository(db)
	exhumationRepo := repository.NewExhumationRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	validate := service.NewValidator()

	templates, err := mailer.NewTemplates(service.DefaultNotificationTemplates())
	if err != nil {
		logr.Fatal("failed to parse notification templates", zap.Error(err))
	}
	smtpMailer := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.Notifications.SMTPHost,
		Port:     cfg.Notifications.SMTPPort,
		Username: cfg.Notifications.SMTPUsername,
		Password: cfg.Notifications.SMTPPassword,
		From:     cfg.Notifications.From,
	})
	notifier := service.NewNotificationService(service.NotificationConfig{
		Enabled:    cfg.Notifications.Enabled,
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, smtpMailer, templates, metrics, logr)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	notifier.Start(bgCtx)
	defer notifier.Stop()

	plotSvc := service.NewPlotLifecycleService(plotRepo, tx, auditRepo, validate, logr,
		service.WithPlotCache(cacheSvc), service.WithPlotEvents(hub))
	exhumationSvc := service.NewExhumationService(exhumationRepo, plotSvc, tx, auditRepo, hub, notifier, validate, logr)
	reservationSvc := service.NewReservationService(reservationRepo, plotSvc, tx, auditRepo, hub, notifier, validate, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
	}, logr)

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare document storage", zap.Error(err))
	}
	documentSvc := service.NewDocumentService(documentStore,
		storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL),
		service.DocumentConfig{
			MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
			PublicPath:       cfg.APIPrefix + "/documents",
		}, logr)

	if cfg.Reservations.ExpiryEnabled {
		expiry := service.NewReservationExpiryJob(reservationSvc, cfg.Reservations.PendingTTL, cfg.Reservations.ExpiryCron, logr)
		if err := expiry.Start(); err != nil {
			logr.Fatal("failed to schedule reservation expiry", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			expiry.Stop(ctx)
		}()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	routes := handler.Routes{
		Plots:        handler.NewPlotHandler(plotSvc),
		Exhumations:  handler.NewExhumationHandler(exhumationSvc),
		Reservations: handler.NewReservationHandler(reservationSvc),
		Documents:    handler.NewDocumentHandler(documentSvc),
		Metrics:      handler.NewMetricsHandler(metrics, checks),
		Auth:         middleware.JWT(tokenSvc),
		Audit: func(action, resource, param string) gin.HandlerFunc {
			return middleware.Audit(auditRepo, logr, action, resource, param)
		},
	}
	if cfg.Exports.Enabled {
		exportSvc := service.NewExportService(plotRepo, exhumationRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr)
		routes.Exports = handler.NewExportHandler(exportSvc)
	}
	routes.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
