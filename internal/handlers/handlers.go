// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"machine-risk-service/internal/cache"
	"machine-risk-service/internal/ingest"
	"machine-risk-service/internal/metrics"
	"machine-risk-service/internal/model"
	"machine-risk-service/internal/models"
	"machine-risk-service/internal/pipeline"
)

// Runs запускает прогоны и хранит последний отчет
type Runs interface {
	Trigger(ctx context.Context) (*models.Report, error)
	Latest() *models.Report
}

// ModelControl состояние и перезагрузка модели
type ModelControl interface {
	State() model.State
	Attempt() uint64
	Reload() error
}

// ReportCache внешний кэш отчетов
type ReportCache interface {
	GetReport(ctx context.Context) (*models.Report, error)
	GetCounter(ctx context.Context, key string) (int64, error)
	RecentRuns(ctx context.Context, count int64) ([]string, error)
	Ping(ctx context.Context) error
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	runs      Runs
	model     ModelControl
	cache     ReportCache
	logger    *zap.Logger
	startTime time.Time
}

// NewHandler создает новый обработчик. cache может быть nil.
func NewHandler(runs Runs, mc ModelControl, rc ReportCache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		runs:      runs,
		model:     mc,
		cache:     rc,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Asset строка таблицы станков на дашборде
type Asset struct {
	UID         string           `json:"uid"`
	Type        string           `json:"type"`
	ProcessTemp models.Float     `json:"process_temp"`
	RPM         models.Float     `json:"rpm"`
	Wear        models.Float     `json:"wear"`
	Torque      models.Float     `json:"torque"`
	Status      models.Status    `json:"status"`
	Risk        models.RiskScore `json:"risk"`
	Fallback    bool             `json:"fallback"`
}

func assetFromSnapshot(s models.MachineSnapshot) Asset {
	return Asset{
		UID:         s.MachineID,
		Type:        s.Latest.ModelVariant,
		ProcessTemp: models.Float(s.Latest.Pressure),
		RPM:         models.Float(s.Latest.RotationSpeed),
		Wear:        models.Float(s.Latest.Vibration),
		Torque:      models.Float(s.Latest.Voltage),
		Status:      s.Status,
		Risk:        s.Risk,
		Fallback:    s.Fallback,
	}
}

// RunHandler обрабатывает POST /runs - запуск прогона
func (h *Handler) RunHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.runs.Trigger(r.Context())
	switch {
	case err == nil:
		h.respondJSON(w, report, http.StatusOK)
	case errors.Is(err, ingest.ErrSourceUnreadable):
		h.respondError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, pipeline.ErrRunSuperseded), errors.Is(err, context.Canceled):
		h.respondError(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("run failed", zap.Error(err))
		h.respondError(w, "Run failed: "+err.Error(), http.StatusInternalServerError)
	}
}

// FleetHandler обрабатывает GET /fleet - статистика парка последнего прогона
func (h *Handler) FleetHandler(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latest(w, r)
	if !ok {
		return
	}

	response := map[string]interface{}{
		"run_id":         report.RunID,
		"finished_at":    report.FinishedAt,
		"stats":          report.Stats,
		"fallback_count": report.FallbackCount,
	}
	h.respondJSON(w, response, http.StatusOK)
}

// MachinesHandler обрабатывает GET /machines - список станков с фильтрами status и q
func (h *Handler) MachinesHandler(w http.ResponseWriter, r *http.Request) {
	var (
		statusFilter models.Status
		byStatus     bool
	)
	if v := r.URL.Query().Get("status"); v != "" && !strings.EqualFold(v, "all") {
		st, ok := models.ParseStatus(v)
		if !ok {
			h.respondError(w, "Unknown status: "+v, http.StatusBadRequest)
			return
		}
		statusFilter, byStatus = st, true
	}
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	report, ok := h.latest(w, r)
	if !ok {
		return
	}

	assets := make([]Asset, 0, len(report.Machines))
	for _, m := range report.Machines {
		if byStatus && m.Status != statusFilter {
			continue
		}
		a := assetFromSnapshot(m)
		if query != "" && !matches(a, query) {
			continue
		}
		assets = append(assets, a)
	}

	h.respondJSON(w, assets, http.StatusOK)
}

func matches(a Asset, query string) bool {
	for _, field := range []string{a.UID, a.Type, a.Status.String()} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// MachineHandler обрабатывает GET /machines/{id} - снимок станка и история графика
func (h *Handler) MachineHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	report, ok := h.latest(w, r)
	if !ok {
		return
	}

	snap, found := report.Machine(id)
	if !found {
		h.respondError(w, "Machine not found: "+id, http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"run_id":   report.RunID,
		"snapshot": snap,
		"history":  report.HistoryByMachine[id],
	}
	h.respondJSON(w, response, http.StatusOK)
}

// ModelHandler обрабатывает GET /model - состояние модели
func (h *Handler) ModelHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, map[string]interface{}{
		"state":   h.model.State().String(),
		"attempt": h.model.Attempt(),
	}, http.StatusOK)
}

// ReloadModelHandler обрабатывает POST /model/reload - сброс загруженной модели
func (h *Handler) ReloadModelHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.model.Reload(); err != nil {
		// Старая модель уже сброшена, ошибка только при ее закрытии
		h.logger.Warn("failed to close previous model", zap.Error(err))
	}
	h.logger.Info("model reload requested", zap.Uint64("attempt", h.model.Attempt()))

	h.respondJSON(w, map[string]interface{}{
		"state":   h.model.State().String(),
		"attempt": h.model.Attempt(),
	}, http.StatusAccepted)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if h.cache != nil && h.cache.Ping(r.Context()) == nil {
		redisStatus = "connected"
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Model:     h.model.State().String(),
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	// Обновляем метрику горутин
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	var (
		runsCompleted int64
		recent        []string
	)
	if h.cache != nil {
		runsCompleted, _ = h.cache.GetCounter(r.Context(), "runs:completed")
		recent, _ = h.cache.RecentRuns(r.Context(), 10)
	}

	response := map[string]interface{}{
		"runs_completed": runsCompleted,
		"recent_runs":    recent,
		"goroutines":     runtime.NumGoroutine(),
		"uptime":         time.Since(h.startTime).String(),
	}
	if latest := h.runs.Latest(); latest != nil {
		response["latest_run"] = latest.RunID
	}

	h.respondJSON(w, response, http.StatusOK)
}

// latest возвращает отчет из памяти, затем из Redis. Если отчета нет, отвечает 404.
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	if report := h.runs.Latest(); report != nil {
		return report, true
	}

	if h.cache != nil {
		report, err := h.cache.GetReport(r.Context())
		if err == nil {
			return report, true
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn("failed to read cached report", zap.Error(err))
		}
	}

	h.respondError(w, "No completed run yet", http.StatusNotFound)
	return nil, false
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		h.respondError(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
