// Package archive stores the raw source documents the scraper fetched for
// each work (HTML pages, scanned PDFs) in S3-compatible object storage, so
// editors can compare the published text against its origin.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when no source object exists for a work.
var ErrNotFound = errors.New("source object not found")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Service struct {
	client *minio.Client
	bucket string
}

func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Service{client: client, bucket: cfg.Bucket}, nil
}

func objectName(workID int64) string {
	return fmt.Sprintf("sources/work-%d/source", workID)
}

// PutSource uploads the raw source document for a work, replacing any
// previous version.
func (s *Service) PutSource(ctx context.Context, workID int64, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName(workID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload source for work %d: %w", workID, err)
	}
	return nil
}

// GetSource streams back the raw source document for a work along with its
// content type.
func (s *Service) GetSource(ctx context.Context, workID int64) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(workID), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("fetch source for work %d: %w", workID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var respErr minio.ErrorResponse
		if errors.As(err, &respErr) && respErr.Code == "NoSuchKey" {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("read source for work %d: %w", workID, err)
	}

	stat, err := obj.Stat()
	if err != nil {
		var respErr minio.ErrorResponse
		if errors.As(err, &respErr) && respErr.Code == "NoSuchKey" {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("stat source for work %d: %w", workID, err)
	}

	return data, stat.ContentType, nil
}
