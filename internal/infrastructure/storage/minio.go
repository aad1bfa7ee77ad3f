package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"mapvault-backend/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MapFileStorage stores uploaded map binaries in MinIO, keyed by map ID.
type MapFileStorage struct {
	client *minio.Client
	bucket string
}

// NewMapFileStorage initializes the MinIO client and ensures the bucket exists.
func NewMapFileStorage(cfg config.MinIOConfig) (*MapFileStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MapFileStorage{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// objectKey is the bucket layout for map payloads. One object per map;
// a re-upload overwrites in place.
func objectKey(mapID string) string {
	return fmt.Sprintf("maps/%s.bsp", mapID)
}

// Upload stores the map payload and returns its public URL.
func (s *MapFileStorage) Upload(ctx context.Context, mapID string, data []byte) (string, error) {
	reader := bytes.NewReader(data)

	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		objectKey(mapID),
		reader,
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}

	url := fmt.Sprintf("http://%s/%s/%s", s.client.EndpointURL().Host, s.bucket, objectKey(mapID))
	return url, nil
}

// Download reads the map payload back into memory.
func (s *MapFileStorage) Download(ctx context.Context, mapID string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectKey(mapID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Delete removes the map payload.
func (s *MapFileStorage) Delete(ctx context.Context, mapID string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey(mapID), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether a payload is stored for the map.
func (s *MapFileStorage) Exists(ctx context.Context, mapID string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectKey(mapID), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}
