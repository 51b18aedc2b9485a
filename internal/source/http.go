package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"machine-risk-service/internal/ingest"
)

// HTTP загружает датасет по URL. Ответ не из диапазона 2xx считается ошибкой.
type HTTP struct {
	URL    string
	Client *http.Client
}

// NewHTTP создает источник с общим таймаутом запроса timeout
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Name возвращает имя источника для логов и отчета
func (h *HTTP) Name() string { return "http:" + h.URL }

// HasHeader ответ начинается с заголовка CSV
func (h *HTTP) HasHeader() bool { return true }

// Records загружает тело ответа и разбирает его на строки
func (h *HTTP) Records(ctx context.Context) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, unreadable(h.Name(), err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unreadable(h.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unreadable(h.Name(), fmt.Errorf("unexpected status %s", resp.Status))
	}

	return ingest.ReadRecords(resp.Body)
}
