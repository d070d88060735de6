// internal/adapters/storage/s3.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ammerola/storefront-cart/internal/core/ports"
)

const maxObjectBytes = 1 << 20

// ErrObjectTooLarge is returned when a stored cart exceeds maxObjectBytes
var ErrObjectTooLarge = errors.New("cart object too large")

// ObjectAPI is the part of *s3.Client the cart store uses
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Config holds S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // For MinIO/LocalStack
	UsePathStyle    bool   // For MinIO/LocalStack
}

// S3Store is a DurableStore keeping one object per key
type S3Store struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

var _ ports.DurableStore = (*S3Store)(nil)

// NewS3Client creates an S3 client from cfg
func NewS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	awsCfg, err := buildAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// buildAWSConfig builds AWS configuration
func buildAWSConfig(ctx context.Context, cfg *S3Config) (aws.Config, error) {
	// Use custom credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretAccessKey,
					"",
				),
			),
		)
	}

	// Otherwise use default credential chain
	return config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
}

// NewS3Store creates an S3-backed durable store and verifies the bucket
func NewS3Store(ctx context.Context, client ObjectAPI, bucket, prefix string, logger *slog.Logger) (*S3Store, error) {
	s := &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With(slog.String("storage", "s3")),
	}

	if err := s.Ping(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("S3 cart storage initialized",
		slog.String("bucket", bucket),
		slog.String("prefix", prefix))
	return s, nil
}

// Ping checks that the bucket is reachable
func (s *S3Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("bucket %s is not accessible: %w", s.bucket, err)
	}
	return nil
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + strings.ReplaceAll(key, ":", "/") + ".json"
}

func (s *S3Store) GetItem(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", ports.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get object %s: %w", s.objectKey(key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", s.objectKey(key), err)
	}
	if len(data) > maxObjectBytes {
		return "", fmt.Errorf("object %s: %w", s.objectKey(key), ErrObjectTooLarge)
	}
	return string(data), nil
}

func (s *S3Store) SetItem(ctx context.Context, key, value string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        strings.NewReader(value),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"updated-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to put cart object",
			slog.String("key", s.objectKey(key)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to put object %s: %w", s.objectKey(key), err)
	}
	return nil
}

func (s *S3Store) RemoveItem(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", s.objectKey(key), err)
	}
	return nil
}
