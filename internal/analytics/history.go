package analytics

import "machine-risk-service/internal/models"

// ChartHistorySize количество точек графика на станок
const ChartHistorySize = 50

// ChartHistory возвращает последние n точек графика из отсортированной истории
func ChartHistory(sorted []models.SensorSample, n int) []models.ChartPoint {
	if n <= 0 || len(sorted) == 0 {
		return []models.ChartPoint{}
	}
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}

	points := make([]models.ChartPoint, 0, len(sorted))
	for _, s := range sorted {
		points = append(points, models.ChartPoint{
			Time: s.Timestamp,
			Temp: s.Pressure,
			RPM:  s.RotationSpeed,
		})
	}
	return points
}

// Snapshot собирает снимок станка из отсортированной истории.
// Возвращает false для пустой истории.
func Snapshot(machineID string, sorted []models.SensorSample, risk models.RiskScore, fallback bool) (models.MachineSnapshot, bool) {
	if len(sorted) == 0 {
		return models.MachineSnapshot{}, false
	}

	snap := models.MachineSnapshot{
		MachineID: machineID,
		Latest:    sorted[len(sorted)-1],
		Risk:      risk,
		Status:    Classify(risk),
		Fallback:  fallback,
	}
	if len(sorted) > 1 {
		prev := sorted[len(sorted)-2]
		snap.Previous = &prev
	}
	return snap, true
}

// BuildSortedWindow строит окно из уже отсортированной истории
func BuildSortedWindow(sorted []models.SensorSample) models.FeatureWindow {
	return buildFromSorted(sorted)
}
