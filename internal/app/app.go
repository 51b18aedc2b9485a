// Package app собирает компоненты конвейера по конфигурации
package app

import (
	"io"

	"go.uber.org/zap"

	"machine-risk-service/internal/config"
	"machine-risk-service/internal/model"
	"machine-risk-service/internal/pipeline"
	"machine-risk-service/internal/source"
)

// App компоненты конвейера, общие для сервера и CLI
type App struct {
	Model  *model.Handle
	Source source.Source
	Runner *pipeline.Runner
}

// NewLoader выбирает загрузчик модели. Без настроенной модели каждый прогон
// использует резервный риск.
func NewLoader(cfg config.ModelConfig) model.Loader {
	switch {
	case cfg.ServingURL != "":
		return model.NewServingLoader(cfg.ServingURL, cfg.Name, cfg.Timeout)
	case cfg.ArtifactPath != "":
		return model.ArtifactLoader{Path: cfg.ArtifactPath}
	default:
		return model.Unconfigured
	}
}

// New собирает конвейер
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	src, err := source.New(cfg.Source)
	if err != nil {
		return nil, err
	}

	handle := model.NewHandle(NewLoader(cfg.Model), logger.Named("model"))
	fallback := pipeline.NewFallback(handle, pipeline.NewRandomSource(cfg.Pipeline.RandomSeed), logger.Named("fallback"))
	runner := pipeline.NewRunner(src, fallback, cfg.Pipeline.Workers, logger.Named("pipeline"))

	return &App{Model: handle, Source: src, Runner: runner}, nil
}

// Close освобождает модель и соединения источника
func (a *App) Close() error {
	err := a.Model.Close()
	if c, ok := a.Source.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
