package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"machine-risk-service/internal/metrics"
	"machine-risk-service/internal/models"
)

// ErrRunSuperseded прогон отменен, потому что запущен более новый
var ErrRunSuperseded = errors.New("run superseded by a newer run")

// ReportStore внешнее хранилище последнего отчета
type ReportStore interface {
	CacheReport(ctx context.Context, report *models.Report, ttl time.Duration) error
	IncrementCounter(ctx context.Context, key string) (int64, error)
}

// Coordinator запускает прогоны по запросу. Новый прогон отменяет
// незавершенный; публикуется только отчет последнего поколения.
type Coordinator struct {
	runner *Runner
	store  ReportStore
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	latest *models.Report
}

// NewCoordinator создает координатор. store может быть nil.
func NewCoordinator(runner *Runner, store ReportStore, ttl time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{runner: runner, store: store, ttl: ttl, logger: logger}
}

// Trigger отменяет текущий прогон и запускает новый. Вызывающий отмененного
// прогона получает ErrRunSuperseded.
func (c *Coordinator) Trigger(ctx context.Context) (*models.Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()

	report, err := c.runner.Run(runCtx)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		// исход прогона уже учтен в RunsTotal самим Runner
		c.logger.Debug("run superseded", zap.Uint64("generation", gen), zap.Error(err))
		return nil, ErrRunSuperseded
	}
	c.cancel = nil
	if err == nil {
		c.latest = report
	}
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}

	metrics.UpdateFleetMetrics(report.Stats)
	c.publish(ctx, report)
	return report, nil
}

func (c *Coordinator) publish(ctx context.Context, report *models.Report) {
	if c.store == nil {
		return
	}

	// Отчет в кэше переживает отмену запроса, запустившего прогон
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := c.store.CacheReport(ctx, report, c.ttl); err != nil {
		c.logger.Warn("failed to cache report", zap.String("run_id", report.RunID), zap.Error(err))
		return
	}
	if _, err := c.store.IncrementCounter(ctx, "runs:completed"); err != nil {
		c.logger.Warn("failed to increment run counter", zap.Error(err))
	}
}

// Latest возвращает последний опубликованный отчет или nil
func (c *Coordinator) Latest() *models.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Stop отменяет незавершенный прогон
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
