// Package s3storage архивирует скриншоты сессий в объектное хранилище.
//
// "Тупой" клиент: кладёт и перечисляет объекты, никакой логики поверх.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/utils"
)

// ClientInterface определяет интерфейс для S3 клиента.
// Используется для мокания в тестах и внедрения зависимостей.
type ClientInterface interface {
	SaveScreenshot(ctx context.Context, data []byte) error
	ListScreenshots(ctx context.Context) ([]StoredObject, error)
}

// Client — минимальный клиент архива поверх minio.
type Client struct {
	api    *minio.Client
	bucket string
	prefix string
}

// Проверка что Client реализует ClientInterface
var _ ClientInterface = (*Client)(nil)

// StoredObject — сырой объект из S3.
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New создает клиент, используя наш конфиг.
func New(cfg config.S3Config) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// SaveScreenshot сохраняет PNG скриншот под временным ключом.
//
// Ключ: <prefix>/2006-01-02/screenshot_150405.000.png — по ключам
// видно хронологию сессии без чтения объектов.
func (c *Client) SaveScreenshot(ctx context.Context, data []byte) error {
	now := time.Now()
	key := path.Join(c.prefix,
		now.Format("2006-01-02"),
		fmt.Sprintf("screenshot_%s.png", now.Format("150405.000")))

	_, err := c.api.PutObject(ctx, c.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return fmt.Errorf("failed to upload screenshot %s: %w", key, err)
	}

	utils.Debug("Screenshot archived", "key", key, "size", len(data))
	return nil
}

// ListScreenshots возвращает все заархивированные скриншоты под префиксом.
func (c *Client) ListScreenshots(ctx context.Context) ([]StoredObject, error) {
	var objects []StoredObject

	opts := minio.ListObjectsOptions{
		Prefix:    c.prefix,
		Recursive: true,
	}

	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list screenshots: %w", obj.Err)
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return objects, nil
}

// Download скачивает объект архива по ключу.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return buf.Bytes(), nil
}
