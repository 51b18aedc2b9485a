package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"machine-risk-service/internal/analytics"
	"machine-risk-service/internal/metrics"
	"machine-risk-service/internal/model"
	"machine-risk-service/internal/models"
)

// Причины перехода на резервный риск (метка метрики)
const (
	ReasonModelUnavailable = "model_unavailable"
	ReasonInferenceFailed  = "inference_failed"
)

// fallbackRange верхняя граница (не включительно) резервного риска
const fallbackRange = 100

// Predictor возвращает вероятность отказа по окну признаков
type Predictor interface {
	Predict(ctx context.Context, window models.FeatureWindow) (float64, error)
}

// Fallback оборачивает вызов модели. Если модель недоступна или инференс
// завершился ошибкой, подставляет случайный риск в [0, 100), и прогон
// продолжается.
type Fallback struct {
	predictor Predictor
	random    RandomSource
	logger    *zap.Logger
}

// NewFallback создает контроллер резервного риска
func NewFallback(predictor Predictor, random RandomSource, logger *zap.Logger) *Fallback {
	if random == nil {
		random = NewRandomSource(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{predictor: predictor, random: random, logger: logger}
}

// Risk возвращает риск станка и признак резервного значения.
// Ошибка возвращается только при отмене контекста.
func (f *Fallback) Risk(ctx context.Context, machineID string, window models.FeatureWindow) (models.RiskScore, bool, error) {
	start := time.Now()
	p, err := f.predictor.Predict(ctx, window)
	metrics.InferenceLatency.Observe(time.Since(start).Seconds())

	if err == nil {
		return analytics.ToRiskScore(p), false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, false, ctxErr
	}

	risk := models.RiskScore(f.random.IntN(fallbackRange))

	switch {
	case errors.Is(err, model.ErrModelUnavailable):
		// Предупреждение о недоступности пишет model.Handle один раз на попытку загрузки
		metrics.Fallbacks.WithLabelValues(ReasonModelUnavailable).Inc()
		f.logger.Debug("fallback risk",
			zap.String("machine_id", machineID),
			zap.String("reason", ReasonModelUnavailable),
			zap.Int("risk", int(risk)))
	default:
		metrics.Fallbacks.WithLabelValues(ReasonInferenceFailed).Inc()
		f.logger.Warn("inference failed, using fallback risk",
			zap.String("machine_id", machineID),
			zap.Int("risk", int(risk)),
			zap.Error(err))
	}

	return risk, true, nil
}
