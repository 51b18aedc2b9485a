// Package pipeline выполняет прогон: чтение датасета, группировку по станкам,
// инференс с резервным риском и агрегацию статистики парка.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"machine-risk-service/internal/analytics"
	"machine-risk-service/internal/ingest"
	"machine-risk-service/internal/metrics"
	"machine-risk-service/internal/models"
	"machine-risk-service/internal/source"
)

// Runner выполняет один прогон конвейера. Каждый прогон создает собственный
// агрегатор, поэтому Run можно вызывать конкурентно.
type Runner struct {
	source   source.Source
	fallback *Fallback
	workers  int
	logger   *zap.Logger
}

// NewRunner создает исполнителя с пулом из workers горутин
func NewRunner(src source.Source, fallback *Fallback, workers int, logger *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{source: src, fallback: fallback, workers: workers, logger: logger}
}

type machineResult struct {
	snapshot models.MachineSnapshot
	chart    []models.ChartPoint
	ok       bool
}

// Run выполняет прогон. Если датасет получить не удалось, возвращает
// ingest.ErrSourceUnreadable; при отмене контекста возвращает ошибку контекста.
// Частичная статистика не возвращается.
func (r *Runner) Run(ctx context.Context) (*models.Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID), zap.String("source", r.source.Name()))

	records, err := r.source.Records(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.RunsTotal.WithLabelValues("cancelled").Inc()
			return nil, ctxErr
		}
		if !errors.Is(err, ingest.ErrSourceUnreadable) {
			err = errors.Join(ingest.ErrSourceUnreadable, err)
		}
		metrics.RunsTotal.WithLabelValues("unreadable").Inc()
		logger.Warn("source unreadable", zap.Error(err))
		return nil, err
	}

	history, stats := ingest.Group(records, r.source.HasHeader())
	metrics.MalformedRows.Add(float64(stats.Skipped))
	metrics.NaNFields.Add(float64(stats.NaNFields))
	if stats.NaNFields > 0 || stats.BadTimes > 0 {
		logger.Warn("dataset contains unparsable values",
			zap.Int("nan_fields", stats.NaNFields),
			zap.Int("bad_timestamps", stats.BadTimes))
	}

	ids := history.Machines()
	results := make([]machineResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			sorted := analytics.SortSamples(history.Samples(id))
			window := analytics.BuildSortedWindow(sorted)

			risk, fallback, err := r.fallback.Risk(gctx, id, window)
			if err != nil {
				return err
			}

			snap, ok := analytics.Snapshot(id, sorted, risk, fallback)
			results[i] = machineResult{
				snapshot: snap,
				chart:    analytics.ChartHistory(sorted, analytics.ChartHistorySize),
				ok:       ok,
			}
			metrics.MachinesProcessed.Inc()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		metrics.RunsTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		metrics.RunsTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	// Свертка в одном владельце в порядке группировки
	agg := analytics.NewFleetAggregator()
	report := &models.Report{
		RunID:            runID,
		Source:           r.source.Name(),
		StartedAt:        start,
		Machines:         make([]models.MachineSnapshot, 0, len(results)),
		HistoryByMachine: make(map[string][]models.ChartPoint, len(results)),
	}
	for _, res := range results {
		if !res.ok {
			continue
		}
		agg.AddSnapshot(res.snapshot)
		report.Machines = append(report.Machines, res.snapshot)
		report.HistoryByMachine[res.snapshot.MachineID] = res.chart
		if res.snapshot.Fallback {
			report.FallbackCount++
		}
	}
	report.Stats = agg.Stats()
	report.FinishedAt = time.Now()

	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.RunDuration.Observe(report.FinishedAt.Sub(start).Seconds())

	logger.Info("run completed",
		zap.Int("machines", len(report.Machines)),
		zap.Int("rows", stats.Rows),
		zap.Int("skipped_rows", stats.Skipped),
		zap.Int("fallbacks", report.FallbackCount),
		zap.Float64("healthy_score", report.Stats.HealthyScore),
		zap.Duration("duration", report.FinishedAt.Sub(start)))

	return report, nil
}
