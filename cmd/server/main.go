package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shortreg/config"
	"shortreg/internal/app/cache"
	"shortreg/internal/app/server"
	"shortreg/internal/app/service"
	"shortreg/internal/app/shortener"
	"shortreg/internal/app/storage/factory"
	"shortreg/internal/auth"
	"shortreg/internal/infra/logger"
	natsclient "shortreg/internal/infra/nats"
	infraprom "shortreg/internal/infra/prometheus"
	infraredis "shortreg/internal/infra/redis"
)

const defaultTokenTTL = 24 * time.Hour

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
	)

	store, err := factory.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage backend", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close storage backend", zap.Error(err))
		}
	}()

	codes := shortener.New(store, cfg.Shortener.CodeLength, cfg.Shortener.MaxAttempts)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	registry := service.NewRegistry(store, codes, hasher, log)

	tokenTTL := defaultTokenTTL
	if cfg.Auth.TokenTTL != "" {
		parsed, err := time.ParseDuration(cfg.Auth.TokenTTL)
		if err != nil {
			log.Fatal("Invalid token TTL", zap.String("value", cfg.Auth.TokenTTL), zap.Error(err))
		}
		tokenTTL = parsed
	}
	tokens := auth.NewTokenSigner([]byte(cfg.Auth.TokenSecret), tokenTTL)

	var urlCache *cache.URLCache
	if cfg.Redis.Enabled {
		redisClient, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		urlCache = cache.New(redisClient, 0, log)
		log.Info("Connected to Redis, redirect cache enabled")
	}

	var publisher *service.AccessPublisher
	if cfg.NATS.Enabled {
		natsConn, js, err := natsclient.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()

		consumer := service.NewAccessConsumer(js, store, log)
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start access event consumer", zap.Error(err))
		}
		publisher = service.NewAccessPublisher(js)
		log.Info("Connected to NATS, async access pipeline enabled")
	}

	if cfg.Prometheus.Enabled {
		promServer := infraprom.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	srv := server.New(server.Dependencies{
		Logger:    log,
		Registry:  registry,
		Tokens:    tokens,
		Cache:     urlCache,
		Publisher: publisher,
	})

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(fmt.Sprintf(":%d", port))
	}()
	log.Info("Server listening", zap.Int("port", port))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("Server exited", zap.Error(err))
		}
	case sig := <-stop:
		log.Info("Shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
