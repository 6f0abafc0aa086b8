package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/vultisig/fluidpay/internal/types"
)

type ArchiveConfig struct {
	Bucket   string `mapstructure:"bucket" json:"bucket,omitempty"`
	Region   string `mapstructure:"region" json:"region,omitempty"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	Prefix   string `mapstructure:"prefix" json:"prefix,omitempty"`
}

// S3Archive writes each settlement as a JSON object keyed by prefix/caller/id.json.
type S3Archive struct {
	client s3iface.S3API
	bucket string
	prefix string
}

func NewS3Archive(cfg ArchiveConfig) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("session.NewSession failed: %w", err)
	}
	return NewS3ArchiveWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

func NewS3ArchiveWithClient(client s3iface.S3API, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3Archive) Key(s types.Settlement) string {
	return path.Join(a.prefix, s.Caller, s.ID.String()+".json")
}

func (a *S3Archive) Archive(ctx context.Context, s types.Settlement) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("json.Marshal failed: %w", err)
	}
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(s)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("fail to upload settlement %s: %w", s.ID, err)
	}
	return nil
}
