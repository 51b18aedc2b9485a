package analytics

import "machine-risk-service/internal/models"

const (
	// WarningThreshold риск выше этого значения означает Warning
	WarningThreshold = 30
	// CriticalThreshold риск выше этого значения означает Critical
	CriticalThreshold = 60
)

// Classify определяет статус станка по риску. Без гистерезиса.
func Classify(risk models.RiskScore) models.Status {
	switch {
	case risk > CriticalThreshold:
		return models.StatusCritical
	case risk > WarningThreshold:
		return models.StatusWarning
	default:
		return models.StatusNormal
	}
}
