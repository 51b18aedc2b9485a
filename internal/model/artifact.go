package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"machine-risk-service/internal/models"
)

// Artifact описание модели, вычисляемой в процессе: sigmoid(Σ w·x + bias)
type Artifact struct {
	Name      string      `json:"name"`
	Timesteps int         `json:"timesteps"`
	Features  int         `json:"features"`
	Weights   [][]float64 `json:"weights"`
	Bias      float64     `json:"bias"`
}

// ArtifactLoader загружает артефакт модели из JSON-файла
type ArtifactLoader struct {
	Path string
}

// Load читает и проверяет форму артефакта
func (l ArtifactLoader) Load(ctx context.Context) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact: %w", err)
	}
	return NewArtifactModel(a)
}

// NewArtifactModel проверяет, что артефакт принимает вход [30, 4]
func NewArtifactModel(a Artifact) (Model, error) {
	if a.Timesteps != models.WindowSize || a.Features != models.FeatureCount {
		return nil, fmt.Errorf("artifact %q expects input [%d, %d], want [%d, %d]",
			a.Name, a.Timesteps, a.Features, models.WindowSize, models.FeatureCount)
	}
	if len(a.Weights) != models.WindowSize {
		return nil, fmt.Errorf("artifact %q has %d weight rows, want %d", a.Name, len(a.Weights), models.WindowSize)
	}

	m := &artifactModel{bias: a.Bias}
	for i, row := range a.Weights {
		if len(row) != models.FeatureCount {
			return nil, fmt.Errorf("artifact %q weight row %d has %d columns, want %d",
				a.Name, i, len(row), models.FeatureCount)
		}
		copy(m.weights[i][:], row)
	}
	return m, nil
}

type artifactModel struct {
	weights models.FeatureWindow
	bias    float64
}

func (m *artifactModel) Predict(ctx context.Context, window models.FeatureWindow) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	z := m.bias
	for t := range window {
		for f := range window[t] {
			z += m.weights[t][f] * window[t][f]
		}
	}
	return []float64{1 / (1 + math.Exp(-z))}, nil
}

func (m *artifactModel) Close() error { return nil }
