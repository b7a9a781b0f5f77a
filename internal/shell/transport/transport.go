// Package transport moves deployment packages through an S3-compatible
// object store: it archives a package directory, uploads it under a fresh
// key, and creates or destroys the bucket that holds it.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"

	"github.com/artpar/yappa/internal/core/deployment"
	"github.com/artpar/yappa/internal/core/validation"
)

// =============================================================================
// Configuration
// =============================================================================

// ObjectAPI is the subset of the S3 API the transport uses. *s3.Client
// satisfies it.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Credentials are static object store keys. They are treated as opaque.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Config configures an S3 client.
type Config struct {
	Endpoint     string
	Region       string
	UsePathStyle bool
	Credentials  Credentials
}

// NewS3Client creates an S3 client for an S3-compatible endpoint.
func NewS3Client(cfg Config) *s3.Client {
	return s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: endpoint(cfg.Endpoint),
		UsePathStyle: cfg.UsePathStyle,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.Credentials.AccessKeyID, cfg.Credentials.SecretAccessKey, ""),
		// S3-compatible stores reject the newer default integrity headers.
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
}

func endpoint(url string) *string {
	if url == "" {
		return nil
	}
	return aws.String(url)
}

// =============================================================================
// Transport
// =============================================================================

// Transport uploads packages and manages buckets.
type Transport struct {
	api    ObjectAPI
	logger *slog.Logger
}

// New creates a new Transport.
func New(api ObjectAPI, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		api:    api,
		logger: logger.With("component", "transport"),
	}
}

// Upload archives dir and stores it in bucket under a fresh key, which is
// returned. Repeated uploads of the same tree never share a key.
func (t *Transport) Upload(ctx context.Context, dir, bucket, slug string) (string, error) {
	archive, err := BuildArchive(dir)
	if err != nil {
		return "", err
	}

	key := deployment.GenerateObjectKey(slug, archive.Digest)
	_, err = t.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(archive.Data),
		ContentLength: aws.Int64(int64(len(archive.Data))),
		ContentType:   aws.String("application/zip"),
		Metadata: map[string]string{
			"sha256": archive.Digest,
		},
	})
	if err != nil {
		if isNoSuchBucket(err) {
			return "", NewTransportError("Upload", bucket, key, errors.Join(ErrBucketNotFound, err))
		}
		return "", NewTransportError("Upload", bucket, key, err)
	}

	t.logger.Info("package uploaded",
		"bucket", bucket,
		"key", key,
		"bytes", len(archive.Data),
		"sha256", archive.Digest,
	)
	return key, nil
}

// Download returns the stored object.
func (t *Transport) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := t.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		switch {
		case isNoSuchKey(err):
			return nil, NewTransportError("Download", bucket, key, errors.Join(ErrObjectNotFound, err))
		case isNoSuchBucket(err):
			return nil, NewTransportError("Download", bucket, key, errors.Join(ErrBucketNotFound, err))
		}
		return nil, NewTransportError("Download", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, NewTransportError("Download", bucket, key, err)
	}
	return data, nil
}

// =============================================================================
// Bucket Lifecycle
// =============================================================================

// ProvisionBucket creates the bucket if it does not exist. A bucket already
// owned by the caller counts as success.
func (t *Transport) ProvisionBucket(ctx context.Context, name string) error {
	if err := validation.ValidateBucketName(name); err != nil {
		return NewTransportError("ProvisionBucket", name, "", err)
	}

	_, err := t.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		var taken *s3types.BucketAlreadyExists
		switch {
		case errors.As(err, &owned) || apiErrorCode(err) == "BucketAlreadyOwnedByYou":
			t.logger.Debug("bucket already exists", "bucket", name)
			return nil
		case errors.As(err, &taken) || apiErrorCode(err) == "BucketAlreadyExists":
			return NewTransportError("ProvisionBucket", name, "", errors.Join(ErrBucketTaken, err))
		}
		return NewTransportError("ProvisionBucket", name, "", err)
	}

	t.logger.Info("bucket created", "bucket", name)
	return nil
}

// DestroyBucket deletes every object in the bucket and then the bucket. A
// missing bucket counts as success.
func (t *Transport) DestroyBucket(ctx context.Context, name string) error {
	deleted := 0
	paginator := s3.NewListObjectsV2Paginator(t.api, &s3.ListObjectsV2Input{Bucket: aws.String(name)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNoSuchBucket(err) {
				t.logger.Debug("bucket already removed", "bucket", name)
				return nil
			}
			return NewTransportError("DestroyBucket", name, "", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := t.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(name),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return NewTransportError("DestroyBucket", name, "", err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return NewTransportError("DestroyBucket", name, aws.ToString(first.Key),
				errors.New(aws.ToString(first.Code)+": "+aws.ToString(first.Message)))
		}
		deleted += len(objects)
	}

	_, err := t.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)})
	if err != nil && !isNoSuchBucket(err) {
		return NewTransportError("DestroyBucket", name, "", err)
	}

	t.logger.Info("bucket destroyed", "bucket", name, "objects", deleted)
	return nil
}

// =============================================================================
// Provider Error Helpers
// =============================================================================

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isNoSuchBucket(err error) bool {
	var notFound *s3types.NoSuchBucket
	return errors.As(err, &notFound) || apiErrorCode(err) == "NoSuchBucket"
}

func isNoSuchKey(err error) bool {
	var notFound *s3types.NoSuchKey
	return errors.As(err, &notFound) || apiErrorCode(err) == "NoSuchKey"
}
