// Package main запускает сервис оценки риска отказа станков.
// Сервис реализует:
// - прогон конвейера по запросу (POST /runs) и при старте
// - инференс последовательной модели с резервным риском
// - статистику парка и список станков для дашборда
// - кэширование отчетов в Redis
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"machine-risk-service/internal/app"
	"machine-risk-service/internal/cache"
	"machine-risk-service/internal/config"
	"machine-risk-service/internal/handlers"
	"machine-risk-service/internal/logging"
	"machine-risk-service/internal/metrics"
	"machine-risk-service/internal/pipeline"
)

const redisAttempts = 5

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Логгер еще не настроен
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting machine risk service",
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()),
		zap.String("source", cfg.Source.Kind),
		zap.Int("workers", cfg.Pipeline.Workers))

	components, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}

	redisCache := connectRedis(cfg.Redis, logger)

	// Интерфейс не должен получить типизированный nil
	var store pipeline.ReportStore
	var reportCache handlers.ReportCache
	if redisCache != nil {
		store = redisCache
		reportCache = redisCache
	}

	coordinator := pipeline.NewCoordinator(components.Runner, store, cfg.Redis.ReportTTL, logger.Named("runs"))
	handler := handlers.NewHandler(coordinator, components.Model, reportCache, logger.Named("http"))

	router := handlers.NewRouter(handler)
	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stopLoops := context.WithCancel(context.Background())
	defer stopLoops()

	// Запускаем горутину для обновления метрик
	go updateMetricsLoop(ctx)

	if cfg.Server.RunOnStart {
		go func() {
			if _, err := coordinator.Trigger(ctx); err != nil {
				logger.Warn("startup run failed", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Ожидаем сигнал завершения
	<-stop
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coordinator.Stop()
	stopLoops()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	if err := components.Close(); err != nil {
		logger.Warn("failed to release pipeline resources", zap.Error(err))
	}
	if redisCache != nil {
		_ = redisCache.Close()
	}

	logger.Info("server stopped")
}

// connectRedis подключается к Redis с повторами. Без Redis сервис работает без кэша.
func connectRedis(cfg config.RedisConfig, logger *zap.Logger) *cache.RedisCache {
	var lastErr error
	for i := 0; i < redisAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c, err := cache.NewRedisCache(ctx, cfg.Addr, cfg.Password, cfg.DB)
		cancel()
		if err == nil {
			logger.Info("connected to Redis", zap.String("addr", cfg.Addr))
			return c
		}

		lastErr = err
		logger.Warn("Redis connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < redisAttempts-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	logger.Warn("running without Redis cache", zap.Error(lastErr))
	return nil
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}
