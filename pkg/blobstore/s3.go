package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/indexseed/pkg/config"
	"github.com/sirupsen/logrus"
)

// s3Store implements Store for S3-compatible storage. Each container is a
// bucket.
type s3Store struct {
	log    logrus.FieldLogger
	cfg    *config.S3Config
	client *s3.Client
}

// Ensure interface compliance.
var _ Store = (*s3Store)(nil)

// NewS3Store creates a Store from the given S3 configuration.
func NewS3Store(log logrus.FieldLogger, cfg *config.S3Config) Store {
	return &s3Store{
		log:    log.WithField("component", "s3-blobstore"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}
}

func newS3Client(cfg *config.S3Config) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = config.DefaultS3Region
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}

func (s *s3Store) Kind() string {
	return config.StorageDriverS3
}

// CreateContainer creates a bucket named after the container.
func (s *s3Store) CreateContainer(ctx context.Context, name string) error {
	_, err := s.client.CreateBucket(ctx, s.createBucketInput(name))
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou

		var exists *s3types.BucketAlreadyExists

		if errors.As(err, &owned) || errors.As(err, &exists) {
			return fmt.Errorf("%s: %w", name, ErrContainerExists)
		}

		return fmt.Errorf("creating bucket %s: %w", name, err)
	}

	s.log.WithField("bucket", name).Debug("Bucket created")

	return nil
}

func (s *s3Store) createBucketInput(name string) *s3.CreateBucketInput {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(name),
	}

	// us-east-1 rejects an explicit location constraint.
	if s.cfg.Region != "" && s.cfg.Region != config.DefaultS3Region {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.cfg.Region),
		}
	}

	return input
}

// Upload puts body as a single object.
func (s *s3Store) Upload(
	ctx context.Context,
	container, key string,
	body io.Reader,
	size int64,
) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(container),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(detectContentType(key)),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		var missing *s3types.NoSuchBucket
		if errors.As(err, &missing) {
			return fmt.Errorf("%s: %w", container, ErrContainerNotFound)
		}

		return fmt.Errorf("PutObject: %w", err)
	}

	return nil
}

// detectContentType returns a MIME type based on the key's extension.
func detectContentType(key string) string {
	ext := path.Ext(key)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
