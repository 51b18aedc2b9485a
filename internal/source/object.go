package source

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"machine-risk-service/internal/ingest"
)

// Object читает датасет из S3-совместимого хранилища
type Object struct {
	Bucket string
	Key    string
	Client *minio.Client
}

// NewObject создает клиент хранилища. Подключение не проверяется до первого чтения.
func NewObject(endpoint, accessKey, secretKey, bucket, key string, useSSL bool) (*Object, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &Object{Bucket: bucket, Key: key, Client: client}, nil
}

// Name возвращает адрес объекта в виде s3://bucket/key
func (o *Object) Name() string { return fmt.Sprintf("s3://%s/%s", o.Bucket, o.Key) }

// HasHeader объект хранится как CSV с заголовком
func (o *Object) HasHeader() bool { return true }

// Records скачивает объект и разбирает его на строки
func (o *Object) Records(ctx context.Context) ([][]string, error) {
	obj, err := o.Client.GetObject(ctx, o.Bucket, o.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, unreadable(o.Name(), fmt.Errorf("s3 get object: %w", err))
	}
	defer obj.Close()

	// GetObject ленивый: ошибки доступа приходят при первом обращении
	if _, err := obj.Stat(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unreadable(o.Name(), fmt.Errorf("s3 stat object: %w", err))
	}

	return ingest.ReadRecords(obj)
}
