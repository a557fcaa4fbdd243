// Package s3blob implements blob.Store on S3 or an S3-compatible service
// such as MinIO or Cloudflare R2.
package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/zsims/atscale/internal/blob"
)

// Options configures a Store.
type Options struct {
	Bucket string
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint     string
	UsePathStyle bool
	// PublicBaseURL prefixes keys in the references returned by Put.
	PublicBaseURL string
}

// Store is a blob.Store backed by an S3 bucket.
type Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	opts     Options
	region   string
	logger   *slog.Logger
}

var _ blob.Store = (*Store)(nil)

// New creates a Store from an SDK configuration.
func New(awsCfg aws.Config, opts Options, log *slog.Logger) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3blob: bucket is required")
	}
	if log == nil {
		log = slog.Default()
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// Several S3-compatible services reject the default CRC32 trailers.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		opts:     opts,
		region:   awsCfg.Region,
		logger:   log.With(slog.String("component", "s3_blob"), slog.String("bucket", opts.Bucket)),
	}, nil
}

// PresignUpload returns a pre-signed PUT URL for key.
func (s *Store) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("s3blob: key cannot be empty")
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("s3blob: presign %q: %w", key, err)
	}
	return req.URL, nil
}

// Get downloads key. A missing object yields blob.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("%w: %s", blob.ErrNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to download %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body for %q: %w", key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

// Put uploads data and returns the public URL of the object.
func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", key, err)
	}

	s.logger.Debug("object uploaded", slog.String("key", key), slog.Int("bytes", len(data)))
	return s.objectURL(key), nil
}

func (s *Store) objectURL(key string) string {
	switch {
	case s.opts.PublicBaseURL != "":
		return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + key
	case s.opts.Endpoint != "":
		return strings.TrimRight(s.opts.Endpoint, "/") + "/" + s.opts.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://s3-%s.amazonaws.com/%s/%s", s.region, s.opts.Bucket, key)
	}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
