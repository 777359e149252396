package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore keeps cache entries as JSON objects under tts-cache/<key>.json.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("tts: minio endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("tts: minio bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: init minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: bucket, region: region}, nil
}

func objectName(key string) string { return "tts-cache/" + key + ".json" }

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if !exists {
			s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		}
	})
	return s.initErr
}

func (s *MinioStore) Get(ctx context.Context, key string) (Entry, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return Entry{}, mapMinioErr(err)
	}
	defer obj.Close()
	raw, err := io.ReadAll(obj)
	if err != nil {
		return Entry{}, mapMinioErr(err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("tts: decode cache entry %s: %w", key, err)
	}
	return e, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, e Entry) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("tts: ensure bucket: %w", err)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectName(key), bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectName(key), minio.RemoveObjectOptions{})
}

func mapMinioErr(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrCacheMiss
	}
	return err
}
