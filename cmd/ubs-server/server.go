package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/SamuelFortes/plataforma-virtual/internal/config"
	"github.com/SamuelFortes/plataforma-virtual/internal/domain/diagnosis"
	"github.com/SamuelFortes/plataforma-virtual/internal/domain/identity"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/blobstore"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/db"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/middleware"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/notification"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/reporting"
)

const version = "0.1.0"

// app holds everything the router needs. Tests build one without a database.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pinger    db.Pinger
	registry  *prometheus.Registry
	tokens    *auth.TokenIssuer
	identity  *identity.Service
	diagnosis *diagnosis.Service
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	return blobstore.Open(ctx, blobstore.Config{
		Driver: cfg.BlobDriver,
		FSRoot: cfg.BlobFSRoot,
		S3: blobstore.S3Config{
			Bucket:    cfg.BlobS3Bucket,
			Region:    cfg.BlobS3Region,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		},
	})
}

func newRouter(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	httpMetrics := middleware.NewHTTPMetrics(a.registry)

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders(a.cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
		AllowCredentials: true,
	}))
	e.Use(httpMetrics.Middleware())
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit, a.cfg.MaxUploadBytes))
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Tokens:   a.tokens,
		Resolver: a.identity,
		Skipper:  auth.AuthSkipper,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.pinger))
	e.GET("/metrics", middleware.MetricsHandler(a.registry))

	api := e.Group("")
	authLimiter := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.AuthRateLimitRPS,
		BurstSize:         a.cfg.AuthRateLimitBurst,
		ExpiresIn:         3 * time.Minute,
	})
	identity.NewHandler(a.identity).RegisterRoutes(api, authLimiter)
	diagnosis.NewHandler(a.diagnosis).RegisterRoutes(api)

	return e
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		bootLogger := newLogger(nil, os.Stdout)
		bootLogger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	zerolog.DefaultContextLogger = &logger

	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.BlobDriver).Msg("failed to open blob store")
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notifier := notification.NewNotifier(notification.NewEmailSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.SMTPFromName,
	}), cfg.SMTPFromName, logger.With().Str("component", "notifier").Logger())
	if !cfg.SMTPConfigured() {
		logger.Warn().Msg("SMTP credentials not set; welcome emails will be skipped")
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	identitySvc := identity.NewService(identity.NewUserRepo(pool), tokens, notifier)

	diagnosisSvc := diagnosis.NewService(diagnosis.NewRepo(pool), db.NewTxRunner(pool))
	diagnosisSvc.SetBlobStore(blobs)
	diagnosisSvc.SetMetrics(diagnosis.NewMetrics(registry))
	diagnosisSvc.SetMunicipality(cfg.ReportMunicipality)
	diagnosisSvc.SetMaxUploadBytes(cfg.MaxUploadBytes)
	diagnosisSvc.RegisterRenderer(reporting.NewPDFRenderer())
	diagnosisSvc.RegisterRenderer(reporting.NewXLSXRenderer())

	if cfg.SeedCatalogOnStart {
		n, err := diagnosisSvc.SeedCatalog(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to seed service catalog")
			return err
		}
		if n > 0 {
			logger.Info().Int("services", n).Msg("service catalog seeded")
		}
	}

	e := newRouter(&app{
		cfg:       cfg,
		logger:    logger,
		pinger:    pool,
		registry:  registry,
		tokens:    tokens,
		identity:  identitySvc,
		diagnosis: diagnosisSvc,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("blob_driver", string(blobs.Driver())).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	notifier.Wait()
	logger.Info().Msg("server stopped")
	return nil
}
