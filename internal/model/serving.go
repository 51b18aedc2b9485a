package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"machine-risk-service/internal/models"
)

// ServingLoader подключается к REST-совместимому с TensorFlow Serving серверу.
// Загрузка проверяет, что у модели есть версия в состоянии AVAILABLE.
type ServingLoader struct {
	BaseURL string
	Name    string
	Client  *http.Client
}

// NewServingLoader создает загрузчик с таймаутом запросов
func NewServingLoader(baseURL, name string, timeout time.Duration) *ServingLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ServingLoader{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Name:    name,
		Client:  &http.Client{Timeout: timeout},
	}
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// Load проверяет доступность модели на сервере
func (l *ServingLoader) Load(ctx context.Context) (Model, error) {
	url := fmt.Sprintf("%s/v1/models/%s", l.BaseURL, l.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query model status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model status: unexpected status %s", resp.Status)
	}

	var status modelStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode model status: %w", err)
	}

	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return &servingModel{
				predictURL: fmt.Sprintf("%s/v1/models/%s:predict", l.BaseURL, l.Name),
				client:     l.Client,
			}, nil
		}
	}
	return nil, fmt.Errorf("model %s has no AVAILABLE version", l.Name)
}

type servingModel struct {
	predictURL string
	client     *http.Client
}

type predictRequest struct {
	Instances []models.FeatureWindow `json:"instances"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
	Error       string            `json:"error"`
}

// Predict отправляет окно формы [1, 30, 4] и возвращает первый выход
func (m *servingModel) Predict(ctx context.Context, window models.FeatureWindow) ([]float64, error) {
	body, err := json.Marshal(predictRequest{
		Instances: []models.FeatureWindow{window},
	})
	if err != nil {
		// NaN во входе не кодируется в JSON
		return nil, fmt.Errorf("failed to marshal window: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.predictURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke model: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction: %w", err)
	}

	var pr predictResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse prediction: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predict: status %s: %s", resp.Status, pr.Error)
	}
	if len(pr.Predictions) == 0 {
		return nil, fmt.Errorf("predict: empty predictions")
	}

	return flatten(pr.Predictions[0])
}

func (m *servingModel) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// flatten разбирает скаляр либо вложенный массив чисел в плоский срез
func flatten(raw json.RawMessage) ([]float64, error) {
	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return []float64{scalar}, nil
	}

	var nested []json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, fmt.Errorf("prediction is neither a number nor an array: %s", string(raw))
	}

	var out []float64
	for _, item := range nested {
		vals, err := flatten(item)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}
