package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"zaypos/backend/internal/cache"
	"zaypos/backend/internal/config"
	"zaypos/backend/internal/httpapi"
	"zaypos/backend/internal/logger"
	"zaypos/backend/internal/money"
	"zaypos/backend/internal/service"
	"zaypos/backend/internal/store"
	"zaypos/backend/internal/store/memory"
	pgstore "zaypos/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid security configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, cfg.VoucherPrefix)
		if err != nil {
			log.Fatal("postgres unavailable and DATABASE_URL is set, refusing in-memory fallback", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository ready", zap.String("backend", "postgres"))
	} else {
		repo = memory.New(cfg.VoucherPrefix)
		log.Info("repository ready", zap.String("backend", "in-memory"))
	}

	statsCache := cache.StatsCache(cache.NoopStatsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using noop stats cache", zap.Error(err))
		} else {
			statsCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("stats cache ready", zap.String("backend", "redis"))
		}
	}

	svc := service.New(repo, statsCache, log, cfg.LowStockThreshold, cfg.StatsCacheTTL)
	if err := svc.EnsureSeedUser(ctx, cfg.SeedAdminUser, cfg.SeedAdminPassword); err != nil {
		log.Fatal("seed admin failed", zap.Error(err))
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	formatter := money.NewFormatter(cfg.CurrencyCode, cfg.CurrencyExponent)
	api := httpapi.New(svc, auth, log, cfg.AllowedOrigin, formatter)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("sale engine listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn("close error", zap.Error(err))
		}
	}
	log.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminUser != "" && len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters when SEED_ADMIN_USER is set")
	}
	return nil
}
