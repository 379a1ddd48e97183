// Package s3 implements the AWS S3-compatible icon storage backend. It supports
// AWS S3, MinIO, DigitalOcean Spaces, and other S3-compatible services via a
// configurable endpoint. Icon objects are public by bucket policy, so PublicURL
// is a plain object URL (optionally behind a CDN) rather than a presigned one.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/storage"
)

func init() {
	storage.Register("s3", func(cfg *appconfig.Config) (storage.IconStore, error) {
		return New(&cfg.Storage.S3)
	})
}

// S3Store implements the IconStore interface for S3-compatible storage
type S3Store struct {
	client        *s3.Client
	bucket        string
	region        string
	endpoint      string
	publicURLBase string
}

// New creates a new S3-compatible icon storage backend.
//
// Authentication methods:
//   - "default" or empty: AWS default credential chain (env vars, shared config, IAM role, IMDS)
//   - "static": explicit access key and secret key
func New(cfg *appconfig.S3StorageConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	authMethod := cfg.AuthMethod
	if authMethod == "" {
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			authMethod = "static"
		} else {
			authMethod = "default"
		}
	}

	switch authMethod {
	case "static":
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, fmt.Errorf("access_key_id and secret_access_key are required for static auth")
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	case "default":
		// AWS default credential chain, no extra configuration
	default:
		return nil, fmt.Errorf("unsupported auth_method: %s (must be 'default' or 'static')", authMethod)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible services generally require path-style addressing
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		endpoint:      cfg.Endpoint,
		publicURLBase: strings.TrimRight(cfg.PublicURLBase, "/"),
	}, nil
}

// Upload stores an object in S3
func (s *S3Store) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string, overwrite bool) error {
	if !overwrite {
		exists, err := s.Exists(ctx, path)
		if err != nil {
			return err
		}
		if exists {
			return storage.ErrObjectExists
		}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

// PublicURL returns the stable public object URL
func (s *S3Store) PublicURL(path string) string {
	path = strings.TrimLeft(path, "/")
	if s.publicURLBase != "" {
		return s.publicURLBase + "/" + path
	}
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, path)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, path)
}

// Delete removes an object from S3
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// Exists reports whether an object occupies path
func (s *S3Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		// HeadObject returns an error for missing keys; treat any error here
		// as absence, matching how callers probe before overwrite.
		return false, nil
	}

	return true, nil
}
