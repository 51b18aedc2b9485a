// Package source поставляет сырые строки датасета конвейеру.
// Любая невозможность получить датасет оборачивается в ingest.ErrSourceUnreadable.
package source

import (
	"context"
	"fmt"

	"machine-risk-service/internal/config"
	"machine-risk-service/internal/ingest"
)

// Source источник строк датасета. Первая строка текстовых источников
// считается заголовком.
type Source interface {
	Name() string
	Records(ctx context.Context) ([][]string, error)
	// HasHeader сообщает, содержит ли первая строка заголовок
	HasHeader() bool
}

// New создает источник по конфигурации
func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case config.SourceFile:
		return NewFile(cfg.Path), nil
	case config.SourceHTTP:
		return NewHTTP(cfg.URL, 0), nil
	case config.SourcePostgres:
		return OpenPostgres(cfg.DSN, cfg.Limit)
	case config.SourceS3:
		return NewObject(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.Object, cfg.UseSSL)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

func unreadable(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ingest.ErrSourceUnreadable, name, err)
}
