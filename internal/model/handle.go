package model

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"machine-risk-service/internal/metrics"
	"machine-risk-service/internal/models"
)

// State состояние загрузки модели
type State int

const (
	// StateNotLoaded загрузка еще не выполнялась
	StateNotLoaded State = iota
	// StateReady модель загружена
	StateReady
	// StateUnavailable загрузка завершилась ошибкой
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not_loaded"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

const loadKey = "model"

// Handle лениво загружает модель ровно один раз и раздает ее всем вызывающим.
// Ошибка загрузки запоминается до явного Reload.
type Handle struct {
	loader Loader
	logger *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	model   Model
	loadErr error
	// attempt номер попытки загрузки; растет при Reload
	attempt uint64
}

// NewHandle создает дескриптор модели. Загрузка не выполняется до первого Get.
func NewHandle(loader Loader, logger *zap.Logger) *Handle {
	if loader == nil {
		loader = Unconfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handle{loader: loader, logger: logger}
}

// Get возвращает загруженную модель. Конкурентные первые вызовы разделяют
// одну загрузку. Если модель недоступна, возвращает ErrModelUnavailable.
func (h *Handle) Get(ctx context.Context) (Model, error) {
	if m, done, err := h.cached(); done {
		return m, err
	}

	ch := h.group.DoChan(loadKey, func() (interface{}, error) {
		if m, done, err := h.cached(); done {
			return m, err
		}
		return h.load()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Model), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) cached() (Model, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch h.state {
	case StateReady:
		return h.model, true, nil
	case StateUnavailable:
		return nil, true, h.loadErr
	}
	return nil, false, nil
}

// load выполняется под singleflight. Контекст вызывающего не используется,
// чтобы отмена одного прогона не отравила общую загрузку.
func (h *Handle) load() (Model, error) {
	h.mu.RLock()
	attempt := h.attempt
	h.mu.RUnlock()

	m, err := h.loader.Load(context.Background())

	h.mu.Lock()
	defer h.mu.Unlock()

	if attempt != h.attempt {
		// Reload во время загрузки: результат устарел
		if m != nil {
			_ = m.Close()
		}
		return nil, fmt.Errorf("%w: load superseded by reload", ErrModelUnavailable)
	}

	if err != nil || m == nil {
		if err == nil {
			err = fmt.Errorf("loader returned no model")
		}
		h.state = StateUnavailable
		h.loadErr = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		metrics.ModelLoads.WithLabelValues("failed").Inc()
		h.logger.Warn("model unavailable, risk scores will use fallback", zap.Error(err))
		return nil, h.loadErr
	}

	h.state = StateReady
	h.model = m
	metrics.ModelLoads.WithLabelValues("ok").Inc()
	h.logger.Info("model loaded")
	return m, nil
}

// Predict выполняет инференс и возвращает вероятность отказа [0, 1].
// Ошибки модели и некорректный выход приводятся к ErrInferenceFailed.
func (h *Handle) Predict(ctx context.Context, window models.FeatureWindow) (prob float64, err error) {
	m, err := h.Get(ctx)
	if err != nil {
		return 0, err
	}

	defer func() {
		if r := recover(); r != nil {
			prob, err = 0, fmt.Errorf("%w: panic: %v", ErrInferenceFailed, r)
		}
	}()

	out, err := m.Predict(ctx, window)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("%w: empty output", ErrInferenceFailed)
	}

	p := out[0]
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: output %v outside [0, 1]", ErrInferenceFailed, p)
	}
	return p, nil
}

// State возвращает текущее состояние загрузки
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Attempt возвращает номер текущей попытки загрузки
func (h *Handle) Attempt() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.attempt
}

// Reload сбрасывает закэшированную модель; следующая Get загрузит ее заново
func (h *Handle) Reload() error {
	h.mu.Lock()
	old := h.model
	h.model = nil
	h.loadErr = nil
	h.state = StateNotLoaded
	h.attempt++
	h.mu.Unlock()

	h.group.Forget(loadKey)
	if old != nil {
		return old.Close()
	}
	return nil
}

// Close освобождает модель
func (h *Handle) Close() error {
	h.mu.Lock()
	old := h.model
	h.model = nil
	h.loadErr = nil
	h.state = StateNotLoaded
	// загрузка, начатая до Close, закроет свою модель сама
	h.attempt++
	h.mu.Unlock()

	h.group.Forget(loadKey)
	if old == nil {
		return nil
	}
	return old.Close()
}
