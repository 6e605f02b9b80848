package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tees-eng/purchasing-service/internal/client"
	"github.com/tees-eng/purchasing-service/internal/config"
	"github.com/tees-eng/purchasing-service/internal/handler"
	"github.com/tees-eng/purchasing-service/internal/repository"
	"github.com/tees-eng/purchasing-service/internal/repository/memory"
	"github.com/tees-eng/purchasing-service/internal/service"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Service.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if cfg.Service.Environment == "development" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		out = zerolog.New(os.Stderr)
	}

	return out.Level(level).With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Logger()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	log.Info().
		Str("environment", cfg.Service.Environment).
		Msg("Starting purchasing service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store selection: Postgres when DATABASE_URL is set, otherwise the
	// in-memory dev store.
	var (
		orderStore        service.OrderStore
		directoryStore    service.DirectoryStore
		notificationStore service.NotificationStore
	)
	if cfg.Database.URL != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid database URL")
		}
		poolCfg.MaxConns = cfg.Database.MaxConns
		poolCfg.MinConns = cfg.Database.MinConns

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create database pool")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		log.Info().Msg("Database connection established")

		orderStore = repository.NewOrderRepository(pool)
		directoryStore = repository.NewUserRepository(pool)
		notificationStore = repository.NewNotificationRepository(pool)
	} else {
		log.Warn().Msg("DATABASE_URL not set; using in-memory store (state is not durable)")
		store := memory.NewStore()
		orderStore = store
		directoryStore = store
		notificationStore = store
	}

	// Event bus, optional.
	var events service.EventPublisher
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer conn.Drain()
		events = client.NewNotificationPublisher(conn, log)
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Info().Msg("NATS_URL not set; event publishing disabled")
	}

	// Email side-channel, optional.
	var mailer service.Mailer
	if cfg.SMTP.Host != "" {
		mailer = client.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, log)
		log.Info().Str("smtp_host", cfg.SMTP.Host).Msg("Email alerts enabled")
	} else {
		log.Info().Msg("SMTP_HOST not set; email alerts disabled")
	}

	orderService := service.NewOrderService(orderStore, directoryStore, mailer, events, log)
	approvalService := service.NewApprovalService(orderStore, directoryStore, mailer, events, log)
	directoryService := service.NewDirectoryService(directoryStore, log)
	notificationService := service.NewNotificationService(notificationStore, log)

	if cfg.Service.BootstrapAdmin != "" {
		admin, err := directoryService.Bootstrap(ctx, cfg.Service.BootstrapAdmin)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap admin user")
		}
		log.Info().Str("user_id", admin.ID).Str("username", admin.Username).Msg("Bootstrap admin ready")
	}

	httpHandler := handler.NewHTTPHandler(orderService, approvalService, directoryService, notificationService, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	httpHandler.Routes(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
