// Package analytics реализует построение окна признаков, классификацию риска
// и агрегацию статистики по парку станков
package analytics

import (
	"math"
	"sort"

	"machine-risk-service/internal/models"
)

// WindowSize размер окна признаков (30 временных шагов)
const WindowSize = models.WindowSize

// SortSamples возвращает копию показаний, отсортированную по времени.
// Сортировка стабильная: при равных метках сохраняется исходный порядок.
func SortSamples(samples []models.SensorSample) []models.SensorSample {
	sorted := make([]models.SensorSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// BuildWindow строит окно признаков из истории станка.
// Берутся последние WindowSize показаний; если их меньше, первый вектор
// повторяется в начале окна. Пустая история дает окно из нулевых векторов.
func BuildWindow(samples []models.SensorSample) models.FeatureWindow {
	return buildFromSorted(SortSamples(samples))
}

func buildFromSorted(sorted []models.SensorSample) models.FeatureWindow {
	var window models.FeatureWindow
	if len(sorted) == 0 {
		return window
	}

	if len(sorted) > WindowSize {
		sorted = sorted[len(sorted)-WindowSize:]
	}

	pad := WindowSize - len(sorted)
	first := sorted[0].Features()
	for i := 0; i < pad; i++ {
		window[i] = first
	}
	for i, s := range sorted {
		window[pad+i] = s.Features()
	}
	return window
}

// ToRiskScore переводит вероятность [0, 1] в целый процент риска [0, 100]
func ToRiskScore(probability float64) models.RiskScore {
	if math.IsNaN(probability) {
		return 0
	}
	score := math.Round(probability * 100)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return models.RiskScore(score)
}
