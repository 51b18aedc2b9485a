// Package cache реализует кэширование отчетов прогонов в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"machine-risk-service/internal/metrics"
	"machine-risk-service/internal/models"
)

const (
	// LatestReportKey ключ последнего отчета
	LatestReportKey = "report:latest"
	// ReportKeyPrefix префикс отчетов по идентификатору прогона
	ReportKeyPrefix = "report:"
	// RecentRunsKey список идентификаторов последних прогонов
	RecentRunsKey = "runs:recent"
	// RecentRunsLimit сколько идентификаторов прогонов хранить
	RecentRunsLimit = 100
	// DefaultTTL время жизни отчета по умолчанию
	DefaultTTL = 1 * time.Hour
)

// ErrCacheMiss в кэше нет записи
var ErrCacheMiss = errors.New("cache miss")

// RedisCache реализует кэширование в Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// CacheReport сохраняет отчет как последний и под ключом прогона
func (r *RedisCache) CacheReport(ctx context.Context, report *models.Report, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, LatestReportKey, data, ttl)
	pipe.Set(ctx, ReportKeyPrefix+report.RunID, data, ttl)
	pipe.LPush(ctx, RecentRunsKey, report.RunID)
	pipe.LTrim(ctx, RecentRunsKey, 0, RecentRunsLimit-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// GetReport возвращает последний отчет или ErrCacheMiss
func (r *RedisCache) GetReport(ctx context.Context) (*models.Report, error) {
	return r.getReport(ctx, LatestReportKey)
}

// GetReportByRun возвращает отчет прогона по идентификатору
func (r *RedisCache) GetReportByRun(ctx context.Context, runID string) (*models.Report, error) {
	return r.getReport(ctx, ReportKeyPrefix+runID)
}

func (r *RedisCache) getReport(ctx context.Context, key string) (*models.Report, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	metrics.CacheHits.Inc()
	return &report, nil
}

// RecentRuns возвращает идентификаторы последних прогонов, новые первыми
func (r *RedisCache) RecentRuns(ctx context.Context, count int64) ([]string, error) {
	ids, err := r.client.LRange(ctx, RecentRunsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	return ids, nil
}

// IncrementCounter увеличивает счетчик
func (r *RedisCache) IncrementCounter(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}
