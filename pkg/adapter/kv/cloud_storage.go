package kv

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// CloudStorage keeps one object per key under a prefix of a bucket
type CloudStorage struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewCloudStorage creates a new Cloud Storage client
func NewCloudStorage(ctx context.Context, bucketName, prefix string) (*CloudStorage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &CloudStorage{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
	}, nil
}

func (s *CloudStorage) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucketName).Object(s.prefix + key + ".json")
}

func (s *CloudStorage) Get(ctx context.Context, key string) (string, bool, error) {
	reader, err := s.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to read object body", goerr.V("key", key))
	}
	return string(data), true, nil
}

func (s *CloudStorage) Set(ctx context.Context, key, value string) error {
	writer := s.object(key).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.WriteString(writer, value); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write to storage", goerr.V("key", key))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("key", key))
	}
	return nil
}

func (s *CloudStorage) Delete(ctx context.Context, key string) error {
	err := s.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return goerr.Wrap(err, "failed to delete from storage", goerr.V("key", key))
	}
	return nil
}

func (s *CloudStorage) Close() error {
	return s.client.Close()
}
