// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package announce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bureau-foundation/headerservice/lib/header"
)

// ObjectStore stores immutable objects under a key in one bucket.
type ObjectStore interface {
	// Bucket is the bucket name used in s3:// URLs.
	Bucket() string

	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// DirStore is an ObjectStore backed by a local directory; the bucket
// is a subdirectory of Root. It stands in for S3 in mock mode and in
// tests.
type DirStore struct {
	Root       string
	BucketName string
}

// Bucket implements [ObjectStore].
func (s *DirStore) Bucket() string { return s.BucketName }

// Put writes the object atomically under Root/BucketName/key.
func (s *DirStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid object key %q", key)
	}
	path := filepath.Join(s.Root, s.BucketName, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}
	return header.WriteFile(path, data)
}

// Get reads an object back. It exists for verification tooling.
func (s *DirStore) Get(key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, s.BucketName, filepath.FromSlash(key)))
}

// S3Config holds the connection settings of an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Secure    bool
	// CreateBucket creates the bucket on first use if it is missing.
	CreateBucket bool
}

// S3Store is an ObjectStore on an S3-compatible service.
type S3Store struct {
	client *minio.Client
	config S3Config
}

// NewS3Store connects a minio client. No request is made until the
// first Put.
func NewS3Store(config S3Config) (*S3Store, error) {
	if config.Endpoint == "" || config.Bucket == "" {
		return nil, errors.New("s3: endpoint and bucket are required")
	}
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.Secure,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: creating client for %s: %w", config.Endpoint, err)
	}
	return &S3Store{client: client, config: config}, nil
}

// Bucket implements [ObjectStore].
func (s *S3Store) Bucket() string { return s.config.Bucket }

// Put implements [ObjectStore].
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.config.CreateBucket {
		exists, err := s.client.BucketExists(ctx, s.config.Bucket)
		if err != nil {
			return fmt.Errorf("s3: checking bucket %s: %w", s.config.Bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.config.Bucket, minio.MakeBucketOptions{Region: s.config.Region}); err != nil {
				return fmt.Errorf("s3: creating bucket %s: %w", s.config.Bucket, err)
			}
		}
	}
	_, err := s.client.PutObject(ctx, s.config.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("s3: putting %s/%s: %w", s.config.Bucket, key, err)
	}
	return nil
}
