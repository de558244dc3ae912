// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package archive writes a JSON snapshot of each persisted day to an
// S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/olegiv/ocms-metricsync/internal/model"
)

// DefaultPrefix is the key prefix of snapshots.
const DefaultPrefix = "daily-metrics"

// Config holds the bucket settings. Endpoint is only needed for
// S3-compatible services; AccessKey/SecretKey fall back to the default
// credential chain when empty.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// ObjectPutter is the subset of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive stores snapshots.
type Archive struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates an Archive backed by S3.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewWithClient creates an Archive over an existing client.
func NewWithClient(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *Archive {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Key returns the object key of the snapshot for d.
func (a *Archive) Key(d model.Date) string {
	return path.Join(a.prefix, d.String()+".json")
}

// Archive writes m, replacing any earlier snapshot of the same day.
func (a *Archive) Archive(ctx context.Context, m model.DailyMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	key := a.Key(m.Date)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("storing snapshot %s: %w", key, err)
	}

	a.logger.Info("stored daily metrics snapshot", "key", key, "size_bytes", len(data))
	return nil
}
