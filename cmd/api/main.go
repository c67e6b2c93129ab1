package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/coinly/coinadmin-api/internal/config"
	"github.com/coinly/coinadmin-api/internal/domain/actions"
	"github.com/coinly/coinadmin-api/internal/domain/audit"
	"github.com/coinly/coinadmin-api/internal/domain/events"
	"github.com/coinly/coinadmin-api/internal/domain/receipt"
	"github.com/coinly/coinadmin-api/internal/domain/verification"
	"github.com/coinly/coinadmin-api/internal/middleware"
	"github.com/coinly/coinadmin-api/internal/pkg/coins"
	"github.com/coinly/coinadmin-api/internal/pkg/database"
	"github.com/coinly/coinadmin-api/internal/pkg/jwt"
	"github.com/coinly/coinadmin-api/internal/pkg/logger"
	"github.com/coinly/coinadmin-api/internal/pkg/response"
	"github.com/coinly/coinadmin-api/internal/pkg/storage"
)

const janitorInterval = 1 * time.Minute

func main() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	})

	log.Info().Str("env", cfg.Env).Msg("Starting coinadmin-api")

	// Infrastructure
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	var store storage.Storage
	if cfg.R2AccountID != "" {
		r2, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 storage client")
		}
		store = r2
	} else {
		log.Warn().Msg("R2 not configured, receipt thumbnails disabled")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	coinsClient := coins.NewClient(coins.Config{
		BaseURL:      cfg.CoinsBaseURL,
		ServiceToken: cfg.CoinsServiceToken,
		Timeout:      time.Duration(cfg.CoinsTimeoutSeconds) * time.Second,
		ReadRetries:  cfg.CoinsReadRetries,
		UserAgent:    "coinadmin-api",
	})

	// Event hub
	hub := events.NewHub(rdb)
	go hub.Run()
	defer hub.Stop()

	// Domain wiring
	auditRepo := audit.NewRepository(db)
	auditService := audit.NewService(auditRepo, rdb)
	auditHandler := audit.NewHandler(auditService)

	var receiptService *receipt.Service
	if store != nil {
		receiptService = receipt.NewService(receipt.NewRepository(db), rdb, store)
	}

	dispatcher := actions.NewDispatcher(coinsClient, auditService, hub)
	actionsHandler := actions.NewHandler(dispatcher, coinsClient)

	sessionManager := verification.NewManager(cfg.SessionIdleTTL)
	defer sessionManager.Stop()

	var enqueuer verification.ReceiptEnqueuer
	var resolver verification.ReceiptResolver
	if receiptService != nil {
		enqueuer = receiptService
		resolver = receiptService
	}

	verificationService := verification.NewService(coinsClient, dispatcher, sessionManager, hub, enqueuer, cfg.EmptyAutoCloseDelay)
	verificationHandler := verification.NewHandler(verificationService, resolver)

	go sessionManager.RunJanitor(janitorInterval, verificationService.Expire)

	eventsHandler := events.NewHandler(hub, cfg.AllowedOrigins)

	// Router
	authMiddleware := middleware.Auth(jwtService)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/verification", verificationHandler.Routes(authMiddleware))
		r.Mount("/users", actionsHandler.UserRoutes(authMiddleware))
		r.Mount("/transactions", actionsHandler.TransactionRoutes(authMiddleware))
		r.Mount("/audit", auditHandler.Routes(authMiddleware, middleware.RequireAdmin()))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/ws", eventsHandler.Feed)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("coinadmin-api stopped")
}
