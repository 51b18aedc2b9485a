// Package model владеет загруженной последовательной моделью и выполняет инференс
package model

import (
	"context"
	"errors"

	"machine-risk-service/internal/models"
)

var (
	// ErrModelUnavailable модель не удалось загрузить
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrInferenceFailed прямой проход завершился ошибкой или вернул некорректный выход
	ErrInferenceFailed = errors.New("inference failed")
)

// Model загруженная модель. Predict возвращает выходной тензор в плоском виде.
type Model interface {
	Predict(ctx context.Context, window models.FeatureWindow) ([]float64, error)
	Close() error
}

// Loader загружает модель из артефакта
type Loader interface {
	Load(ctx context.Context) (Model, error)
}

// LoaderFunc адаптер функции к Loader
type LoaderFunc func(ctx context.Context) (Model, error)

// Load вызывает f(ctx)
func (f LoaderFunc) Load(ctx context.Context) (Model, error) {
	return f(ctx)
}

// Unconfigured загрузчик, который всегда сообщает о недоступности модели
var Unconfigured Loader = LoaderFunc(func(context.Context) (Model, error) {
	return nil, errors.New("no model configured")
})
