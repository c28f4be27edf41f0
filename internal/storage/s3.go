package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/config"
)

// S3Store implements ImageStore on S3 or an S3-compatible endpoint.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
	maxSize int64
}

// NewS3Store creates the S3 image store from config.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: PublicBaseURL(cfg),
		maxSize: cfg.MaxUploadBytes(),
	}, nil
}

// PublicBaseURL is the configured public URL or the bucket's virtual-hosted URL
func PublicBaseURL(cfg config.S3Config) string {
	if cfg.PublicBaseURL != "" {
		return trimSlash(cfg.PublicBaseURL)
	}
	if cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s", trimSlash(cfg.Endpoint), cfg.Bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// Upload stores the object and returns its public URL
func (s *S3Store) Upload(ctx context.Context, userID, filename, contentType string, body io.Reader, size int64) (string, error) {
	if !IsImage(contentType) {
		return "", ErrUnsupportedType
	}
	if size > s.maxSize {
		return "", ErrTooLarge
	}

	key := ObjectKey(userID, filename, time.Now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	log.Printf("[Storage] Uploaded %s (%d bytes)", key, size)
	return s.baseURL + "/" + key, nil
}

// DeleteByURL removes the object behind a public URL produced by Upload
func (s *S3Store) DeleteByURL(ctx context.Context, url string) error {
	key, err := keyFromURL(s.baseURL, url)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	log.Printf("[Storage] Deleted %s", key)
	return nil
}
