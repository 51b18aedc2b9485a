// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"machine-risk-service/internal/models"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machine_risk_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "machine_risk_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"endpoint", "method"},
	)

	// RunsTotal количество прогонов конвейера по результату
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machine_risk_runs_total",
			Help: "Total number of pipeline runs by result",
		},
		[]string{"result"},
	)

	// RunDuration длительность прогона конвейера
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "machine_risk_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// MachinesProcessed количество обработанных станков
	MachinesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "machine_risk_machines_processed_total",
			Help: "Total number of machine snapshots produced",
		},
	)

	// MalformedRows количество пропущенных строк датасета
	MalformedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "machine_risk_malformed_rows_total",
			Help: "Total number of dataset rows skipped at ingestion",
		},
	)

	// NaNFields количество числовых полей, не прошедших разбор
	NaNFields = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "machine_risk_nan_fields_total",
			Help: "Total number of numeric fields that failed to parse",
		},
	)

	// Fallbacks количество подмен риска случайным значением
	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machine_risk_fallbacks_total",
			Help: "Total number of fallback risk scores by reason",
		},
		[]string{"reason"},
	)

	// ModelLoads количество попыток загрузки модели
	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machine_risk_model_loads_total",
			Help: "Total number of model load attempts by result",
		},
		[]string{"result"},
	)

	// InferenceLatency время одного прямого прохода
	InferenceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "machine_risk_inference_latency_seconds",
			Help:    "Model inference latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// FleetHealthyScore индекс здоровья парка
	FleetHealthyScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "machine_risk_fleet_healthy_score",
			Help: "Fleet healthy score of the latest run",
		},
	)

	// FleetCriticalCount количество станков в статусе Critical
	FleetCriticalCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "machine_risk_fleet_critical_count",
			Help: "Number of critical machines in the latest run",
		},
	)

	// FleetAvgTemp средняя proxy-температура по последним показаниям
	FleetAvgTemp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "machine_risk_fleet_avg_temp",
			Help: "Average proxy temperature of the latest readings",
		},
	)

	// FleetTempTrend изменение средней температуры в процентах
	FleetTempTrend = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "machine_risk_fleet_temp_trend_pct",
			Help: "Percentage change of the average proxy temperature",
		},
	)

	// CacheHits попадания в кэш
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "machine_risk_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses промахи кэша
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "machine_risk_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "machine_risk_active_goroutines",
			Help: "Number of active goroutines",
		},
	)
)

// UpdateFleetMetrics обновляет метрики парка по итогам прогона.
// Нечисловые значения пропускаются.
func UpdateFleetMetrics(stats models.FleetStats) {
	setFinite(FleetHealthyScore, stats.HealthyScore)
	setFinite(FleetAvgTemp, stats.AvgTempCurrent)
	setFinite(FleetTempTrend, stats.TempTrendPct)
	FleetCriticalCount.Set(float64(stats.CriticalCount))
}

func setFinite(g prometheus.Gauge, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	g.Set(v)
}
