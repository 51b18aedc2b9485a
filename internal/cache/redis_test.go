package cache

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"machine-risk-service/internal/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func sampleReport(runID string) *models.Report {
	ts := time.Date(2015, 1, 1, 6, 0, 0, 0, time.UTC)
	return &models.Report{
		RunID:      runID,
		Source:     "file:data/machine_data.csv",
		StartedAt:  ts,
		FinishedAt: ts.Add(time.Second),
		Machines: []models.MachineSnapshot{{
			MachineID: "1",
			Latest:    models.SensorSample{Timestamp: ts, MachineID: "1", Pressure: 100, Vibration: math.NaN()},
			Risk:      65,
			Status:    models.StatusCritical,
		}},
		HistoryByMachine: map[string][]models.ChartPoint{"1": {{Time: ts, Temp: 100, RPM: 420}}},
		Stats:            models.FleetStats{AvgTempCurrent: 100, AvgTempPrev: 100, HealthyScore: 35, CriticalCount: 1, MachineCount: 1},
	}
}

func TestRedisCache_ReportRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.CacheReport(ctx, sampleReport("run-1"), 10*time.Minute))

	got, err := c.GetReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, models.StatusCritical, got.Machines[0].Status)
	assert.True(t, math.IsNaN(got.Machines[0].Latest.Vibration))
	assert.Equal(t, 35.0, got.Stats.HealthyScore)

	byRun, err := c.GetReportByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, got.Stats, byRun.Stats)

	assert.Equal(t, 10*time.Minute, mr.TTL(LatestReportKey))
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.GetReport(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_ReportExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.CacheReport(ctx, sampleReport("run-1"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.GetReport(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_RecentRuns(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, c.CacheReport(ctx, sampleReport(id), 0))
	}

	ids, err := c.RecentRuns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-3", "run-2"}, ids)

	latest, err := c.GetReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-3", latest.RunID)
}

func TestRedisCache_Counters(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	n, err := c.GetCounter(ctx, "runs:completed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for i := 0; i < 3; i++ {
		_, err := c.IncrementCounter(ctx, "runs:completed")
		require.NoError(t, err)
	}

	n, err = c.GetCounter(ctx, "runs:completed")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRedisCache_PingAfterServerClose(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
