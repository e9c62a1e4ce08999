package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/filedepot/filedepot/pkg/filedepot"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (MinIO needs this)
	KeyPrefix       string // Optional key prefix, default "blobs/"

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3-compatible implementation of the filedepot.BlobStore
// interface. Object keys are derived from the content hash; S3 object
// writes are already atomic and last-writer-wins with identical bytes, so
// no extra put/remove locking is needed.
type Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "blobs/"
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:    client,
		bucket:    config.Bucket,
		keyPrefix: config.KeyPrefix,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background(), config.Region); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context, region string) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) && !strings.Contains(err.Error(), "BadRequest") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		// Another creator winning the race is fine
		if strings.Contains(err.Error(), "BucketAlreadyExists") ||
			strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Put writes the blob under hash if absent. An existing object is verified
// by length and left untouched.
func (b *Backend) Put(ctx context.Context, hash string, r io.Reader, size int64) error {
	key := b.keyFor(hash)

	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		if head.ContentLength != nil && *head.ContentLength != size {
			return &filedepot.StorageError{Hash: hash, Op: "put", Err: filedepot.ErrHashSizeMismatch}
		}
		return nil
	}
	if !isNotFound(err) {
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}

	uploader := manager.NewUploader(b.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return &filedepot.StorageError{Hash: hash, Op: "put", Err: err}
	}

	return nil
}

// Exists reports whether a blob is stored under hash.
func (b *Backend) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.keyFor(hash)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, &filedepot.StorageError{Hash: hash, Op: "stat", Err: err}
}

// Open returns a reader over the blob bytes.
func (b *Backend) Open(ctx context.Context, hash string) (io.ReadCloser, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.keyFor(hash)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("hash %s: %w", hash, filedepot.ErrBlobNotFound)
		}
		return nil, &filedepot.StorageError{Hash: hash, Op: "open", Err: err}
	}
	return result.Body, nil
}

// Remove deletes the blob. S3 DeleteObject on an absent key already
// succeeds, so idempotency comes for free.
func (b *Backend) Remove(ctx context.Context, hash string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.keyFor(hash)),
	})
	if err != nil {
		return &filedepot.StorageError{Hash: hash, Op: "remove", Err: err}
	}
	return nil
}

// WalkHashes enumerates stored blobs for the orphan sweep.
func (b *Backend) WalkHashes(ctx context.Context, fn func(hash string, sizeBytes int64) error) error {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.keyPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			hash := strings.TrimPrefix(aws.ToString(obj.Key), b.keyPrefix)
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			if err := fn(hash, size); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) keyFor(hash string) string {
	return b.keyPrefix + hash
}

// isNotFound classifies the various shapes S3-compatible services use for
// missing objects and buckets.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
