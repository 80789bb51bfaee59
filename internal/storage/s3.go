// Package storage archives verified webhook deliveries to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/streamhall/backend/internal/config"
)

// ErrInvalidDeliveryID indicates an empty or path-like delivery id.
var ErrInvalidDeliveryID = errors.New("s3 archive: invalid delivery id")

// S3Archive writes raw webhook payloads under a date-partitioned prefix.
type S3Archive struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	now      func() time.Time
}

// NewS3Archive configures an uploader for the object store in cfg.
func NewS3Archive(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Archive, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 archive: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Archive{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Archive stores payload, byte for byte, keyed by the delivery id.
func (a *S3Archive) Archive(ctx context.Context, deliveryID string, payload []byte) (string, error) {
	key, err := a.objectKey(deliveryID)
	if err != nil {
		return "", err
	}

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 archive upload %s: %w", key, err)
	}
	return key, nil
}

func (a *S3Archive) objectKey(deliveryID string) (string, error) {
	deliveryID = strings.Trim(strings.TrimSpace(deliveryID), "/")
	if deliveryID == "" || strings.Contains(deliveryID, "/") {
		return "", ErrInvalidDeliveryID
	}
	day := a.now().Format("2006/01/02")
	return path.Join(a.prefix, day, deliveryID+".json"), nil
}
