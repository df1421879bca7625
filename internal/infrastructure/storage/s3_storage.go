// Package storage loads local item images for attachment to remote products.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/config"
)

// DefaultMaxImageSize is the largest image the remote platform accepts
const DefaultMaxImageSize int64 = 20 << 20

var (
	// ErrImageNotFound is returned when the referenced object does not exist
	ErrImageNotFound = errors.New("storage: image not found")
	// ErrImageTooLarge is returned when the object exceeds the size limit
	ErrImageTooLarge = errors.New("storage: image too large")
	// ErrEmptyReference is returned for a blank image reference
	ErrEmptyReference = errors.New("storage: image reference is required")
)

// objectAPI is the subset of *s3.Client used here
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3ImageSource reads item images from an S3-compatible bucket (AWS S3,
// MinIO, RustFS). References are object keys, optionally written as
// s3://bucket/key.
type S3ImageSource struct {
	client  objectAPI
	bucket  string
	maxSize int64
	logger  *zap.Logger
}

// S3ImageSourceOption is a functional option for configuring S3ImageSource
type S3ImageSourceOption func(*S3ImageSource)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ImageSourceOption {
	return func(s *S3ImageSource) {
		s.logger = logger
	}
}

// WithMaxSize overrides DefaultMaxImageSize
func WithMaxSize(n int64) S3ImageSourceOption {
	return func(s *S3ImageSource) {
		s.maxSize = n
	}
}

// NewS3ImageSource creates an image source from configuration.
func NewS3ImageSource(ctx context.Context, cfg *config.StorageConfig, opts ...S3ImageSourceOption) (*S3ImageSource, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newS3ImageSource(client, cfg.Bucket, opts...), nil
}

func newS3ImageSource(client objectAPI, bucket string, opts ...S3ImageSourceOption) *S3ImageSource {
	s := &S3ImageSource{
		client:  client,
		bucket:  bucket,
		maxSize: DefaultMaxImageSize,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizeEndpoint adds a scheme to a bare host. An empty endpoint means AWS.
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// Bucket returns the configured bucket name
func (s *S3ImageSource) Bucket() string {
	return s.bucket
}

// objectKey resolves ref to a key in this bucket
func (s *S3ImageSource) objectKey(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(ref, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket != s.bucket {
			return "", fmt.Errorf("image %q is outside bucket %s", ref, s.bucket)
		}
		ref = key
	}
	ref = strings.TrimLeft(ref, "/")
	if ref == "" {
		return "", ErrEmptyReference
	}
	return ref, nil
}

// Fetch downloads the object named by ref and returns its bytes and base name.
func (s *S3ImageSource) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	key, err := s.objectKey(ref)
	if err != nil {
		return nil, "", err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrImageNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > s.maxSize {
		return nil, "", fmt.Errorf("%w: %s is %d bytes", ErrImageTooLarge, key, *out.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(out.Body, s.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, "", fmt.Errorf("%w: %s", ErrImageTooLarge, key)
	}

	s.logger.Debug("image fetched", zap.String("key", key), zap.Int("bytes", len(data)))
	return data, path.Base(key), nil
}

// Ping checks that the bucket exists and is reachable
func (s *S3ImageSource) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	return nil
}

var _ integration.ImageSource = (*S3ImageSource)(nil)
