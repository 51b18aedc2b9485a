package metrics

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"machine-risk-service/internal/models"
)

func TestUpdateFleetMetrics(t *testing.T) {
	UpdateFleetMetrics(models.FleetStats{
		AvgTempCurrent: 20,
		TempTrendPct:   60,
		CriticalCount:  3,
		HealthyScore:   75,
	})

	assert.Equal(t, 75.0, testutil.ToFloat64(FleetHealthyScore))
	assert.Equal(t, 20.0, testutil.ToFloat64(FleetAvgTemp))
	assert.Equal(t, 60.0, testutil.ToFloat64(FleetTempTrend))
	assert.Equal(t, 3.0, testutil.ToFloat64(FleetCriticalCount))
}

func TestUpdateFleetMetrics_SkipsNaN(t *testing.T) {
	UpdateFleetMetrics(models.FleetStats{AvgTempCurrent: 42, HealthyScore: 10})
	UpdateFleetMetrics(models.FleetStats{AvgTempCurrent: math.NaN(), HealthyScore: 10})

	assert.Equal(t, 42.0, testutil.ToFloat64(FleetAvgTemp))
}

func TestFallbackCounterByReason(t *testing.T) {
	before := testutil.ToFloat64(Fallbacks.WithLabelValues("model_unavailable"))
	Fallbacks.WithLabelValues("model_unavailable").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Fallbacks.WithLabelValues("model_unavailable")))
}
