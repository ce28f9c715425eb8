package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/artpar/skybite/internal/core/domain"
)

// S3Config configures the S3 (or S3-compatible) backend.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for MinIO / R2 style stores
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string // public URL = PublicBaseURL + "/" + key
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores objects with PutObject.
type S3Uploader struct {
	client  objectPutter
	bucket  string
	baseURL string
	logger  *slog.Logger
}

// NewS3Uploader creates an S3 uploader from static credentials.
func NewS3Uploader(cfg S3Config, logger *slog.Logger) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media.s3.bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Uploader{
		client:  s3.New(opts),
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		logger:  logger.With("component", "media", "backend", "s3"),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, obj Object) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Body))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			err = fmt.Errorf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", domain.NewExternalServiceError("s3", err)
	}

	u.logger.Debug("stored object", "key", obj.Key, "size", len(obj.Body))
	return u.baseURL + "/" + obj.Key, nil
}
