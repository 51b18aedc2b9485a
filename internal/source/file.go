package source

import (
	"context"
	"os"

	"machine-risk-service/internal/ingest"
)

// File читает датасет из локального файла
type File struct {
	Path string
}

// NewFile создает источник для файла по пути path
func NewFile(path string) *File {
	return &File{Path: path}
}

// Name возвращает имя источника для логов и отчета
func (f *File) Name() string { return "file:" + f.Path }

// HasHeader CSV-файл начинается с заголовка
func (f *File) HasHeader() bool { return true }

// Records читает и разбирает файл целиком
func (f *File) Records(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, unreadable(f.Name(), err)
	}
	defer file.Close()

	return ingest.ReadRecords(file)
}
