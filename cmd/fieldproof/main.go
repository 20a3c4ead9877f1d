// Command fieldproof runs the photo verification engine's HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fieldproof/fieldproof/infrastructure/metrics"
	"github.com/fieldproof/fieldproof/infrastructure/ratelimit"
	"github.com/fieldproof/fieldproof/infrastructure/vision"
	"github.com/fieldproof/fieldproof/internal/application"
	"github.com/fieldproof/fieldproof/internal/config"
	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/server"
	"github.com/fieldproof/fieldproof/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldproof: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.Database.DSN())
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		// The limiter fails open, so an unreachable Redis degrades
		// enforcement rather than blocking startup.
		logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer redisClient.Close()

	collector := metrics.NewPrometheusMetrics()
	limiter := ratelimit.NewFixedWindowLimiter(ratelimit.NewRedisCounter(redisClient), logger)

	providers := make(map[string]vision.ProviderConfig, len(vision.DefaultProviders))
	for name, pc := range vision.DefaultProviders {
		pc.Middleware = []vision.Middleware{
			vision.MetricsMiddleware(name, collector),
			vision.TracingMiddleware(name),
		}
		providers[name] = pc
	}
	registry, err := vision.NewRegistry(vision.RegistryConfig{
		Providers:       providers,
		DefaultProvider: "openai",
		DefaultTimeout:  cfg.Vision.RequestTimeout,
	})
	if err != nil {
		return err
	}

	prices := domain.NewPriceTable()
	if path := cfg.Vision.PriceOverridesPath; path != "" {
		if err := prices.LoadPriceOverrides(path); err != nil {
			return err
		}
	}

	orchestrator := application.NewOrchestrator(
		registry, store, store, store, prices, logger,
		application.WithMetrics(collector),
	)
	usage := application.NewUsageService(store, logger)

	srv := server.New(orchestrator, usage, store, store, store, limiter, cfg.Security.JWTSecret, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
