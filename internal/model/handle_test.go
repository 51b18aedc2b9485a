package model

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"machine-risk-service/internal/models"
)

type stubModel struct {
	out    []float64
	err    error
	panics bool
	closed atomic.Bool
}

func (m *stubModel) Predict(ctx context.Context, _ models.FeatureWindow) ([]float64, error) {
	if m.panics {
		panic("tensor shape mismatch")
	}
	return m.out, m.err
}

func (m *stubModel) Close() error {
	m.closed.Store(true)
	return nil
}

type countingLoader struct {
	calls atomic.Int32
	delay time.Duration
	model Model
	err   error
}

func (l *countingLoader) Load(context.Context) (Model, error) {
	l.calls.Add(1)
	time.Sleep(l.delay)
	if l.err != nil {
		return nil, l.err
	}
	return l.model, nil
}

func TestHandle_LoadsOnceUnderConcurrency(t *testing.T) {
	loader := &countingLoader{delay: 50 * time.Millisecond, model: &stubModel{out: []float64{0.5}}}
	h := NewHandle(loader, zap.NewNop())

	var wg sync.WaitGroup
	got := make([]Model, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := h.Get(context.Background())
			assert.NoError(t, err)
			got[i] = m
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
	for _, m := range got {
		assert.Same(t, loader.model, m)
	}
	assert.Equal(t, StateReady, h.State())

	_, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestHandle_NotLoadedUntilFirstUse(t *testing.T) {
	loader := &countingLoader{model: &stubModel{out: []float64{0.1}}}
	h := NewHandle(loader, nil)

	assert.Equal(t, StateNotLoaded, h.State())
	assert.Equal(t, int32(0), loader.calls.Load())
}

func TestHandle_UnavailableIsCached(t *testing.T) {
	loader := &countingLoader{err: errors.New("model.json: no such file")}
	h := NewHandle(loader, zap.NewNop())

	_, err := h.Get(context.Background())
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, StateUnavailable, h.State())

	_, err = h.Predict(context.Background(), models.FeatureWindow{})
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestHandle_ReloadLoadsAgain(t *testing.T) {
	first := &stubModel{out: []float64{0.2}}
	loader := &countingLoader{model: first}
	h := NewHandle(loader, zap.NewNop())

	_, err := h.Get(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Reload())
	assert.True(t, first.closed.Load())
	assert.Equal(t, StateNotLoaded, h.State())
	assert.Equal(t, uint64(1), h.Attempt())

	_, err = h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestHandle_NilLoaderIsUnavailable(t *testing.T) {
	h := NewHandle(nil, nil)
	_, err := h.Get(context.Background())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestHandle_PredictValidatesOutput(t *testing.T) {
	cases := map[string]*stubModel{
		"error":    {err: errors.New("forward pass failed")},
		"empty":    {out: []float64{}},
		"nan":      {out: []float64{math.NaN()}},
		"negative": {out: []float64{-0.1}},
		"above":    {out: []float64{1.5}},
		"panic":    {panics: true},
	}

	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewHandle(LoaderFunc(func(context.Context) (Model, error) { return m, nil }), zap.NewNop())
			_, err := h.Predict(context.Background(), models.FeatureWindow{})
			assert.ErrorIs(t, err, ErrInferenceFailed)
		})
	}
}

func TestHandle_PredictReturnsFirstElement(t *testing.T) {
	m := &stubModel{out: []float64{0.73, 0.1}}
	h := NewHandle(LoaderFunc(func(context.Context) (Model, error) { return m, nil }), zap.NewNop())

	p, err := h.Predict(context.Background(), models.FeatureWindow{})
	require.NoError(t, err)
	assert.InDelta(t, 0.73, p, 1e-9)
}

func TestHandle_GetHonoursCallerContext(t *testing.T) {
	loader := &countingLoader{delay: 200 * time.Millisecond, model: &stubModel{out: []float64{0.5}}}
	h := NewHandle(loader, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The shared load still completes for later callers
	m, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, loader.model, m)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestHandle_CloseDuringLoadDiscardsLateModel(t *testing.T) {
	late := &stubModel{out: []float64{0.5}}
	loader := &countingLoader{delay: 100 * time.Millisecond, model: late}
	h := NewHandle(loader, zap.NewNop())

	errc := make(chan error, 1)
	go func() {
		_, err := h.Get(context.Background())
		errc <- err
	}()

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.Close())

	err := <-errc
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.True(t, late.closed.Load())
	assert.Equal(t, StateNotLoaded, h.State())
	assert.Equal(t, uint64(1), h.Attempt())
}
