package analytics

import (
	"math"

	"machine-risk-service/internal/models"
)

// Accumulator накапливает сумму и количество значений для среднего
type Accumulator struct {
	sum   float64
	count int
}

// Add добавляет значение
func (a *Accumulator) Add(value float64) {
	a.sum += value
	a.count++
}

// Mean возвращает среднее значение; для пустого аккумулятора 0
func (a *Accumulator) Mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Count возвращает количество значений
func (a *Accumulator) Count() int {
	return a.count
}

// FleetAggregator сворачивает результаты по станкам в статистику парка.
// Экземпляр принадлежит одному прогону и не потокобезопасен.
type FleetAggregator struct {
	latestTemp Accumulator
	prevTemp   Accumulator
	risk       Accumulator
	counts     models.StatusCounts
}

// NewFleetAggregator создает пустой агрегатор
func NewFleetAggregator() *FleetAggregator {
	return &FleetAggregator{}
}

// Add учитывает один станок. Температурой служит давление (proxy temperature).
func (f *FleetAggregator) Add(latest models.SensorSample, prev *models.SensorSample, risk models.RiskScore, status models.Status) {
	f.latestTemp.Add(latest.Pressure)
	if prev != nil {
		f.prevTemp.Add(prev.Pressure)
	}
	f.risk.Add(float64(risk))

	switch status {
	case models.StatusCritical:
		f.counts.Critical++
	case models.StatusWarning:
		f.counts.Warning++
	default:
		f.counts.Normal++
	}
}

// AddSnapshot учитывает снимок станка
func (f *FleetAggregator) AddSnapshot(s models.MachineSnapshot) {
	f.Add(s.Latest, s.Previous, s.Risk, s.Status)
}

// Stats вычисляет итоговую статистику
func (f *FleetAggregator) Stats() models.FleetStats {
	avgCurrent := f.latestTemp.Mean()

	// Без предыдущих показаний тренд не считаем
	avgPrev := avgCurrent
	if f.prevTemp.Count() > 0 {
		avgPrev = f.prevTemp.Mean()
	}

	trend := 0.0
	if avgPrev != 0 {
		trend = (avgCurrent - avgPrev) / avgPrev * 100
	}

	healthy := 0.0
	if f.risk.Count() > 0 {
		healthy = math.Max(0, math.Min(100, 100-f.risk.Mean()))
	}

	return models.FleetStats{
		AvgTempCurrent: avgCurrent,
		AvgTempPrev:    avgPrev,
		TempTrendPct:   trend,
		CriticalCount:  f.counts.Critical,
		HealthyScore:   healthy,
		MachineCount:   f.latestTemp.Count(),
		StatusCounts:   f.counts,
	}
}
