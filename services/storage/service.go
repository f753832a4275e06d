package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/mailsink/mailsink/config"
	"github.com/mailsink/mailsink/interfaces"
	"github.com/mailsink/mailsink/internal/tracing"
	"github.com/mailsink/mailsink/services/storage/aws_client"
)

// ObjectStorageService keeps an archive copy of attachment bytes in S3 or
// R2, keyed by checksum so re-uploads of identical content land on the same
// object.
type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
}

// NewArchiveStorageService builds the storage service from archive config.
// An R2 account id switches the endpoint to Cloudflare, otherwise plain S3
// in the configured region.
func NewArchiveStorageService(cfg *config.ArchiveConfig) interfaces.StorageService {
	var client aws_client.S3Client
	if cfg.R2AccountID != "" {
		client = aws_client.NewR2Client(aws_client.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.AccessKeyID,
			AccessKeySecret: cfg.AccessKeySecret,
		})
	} else {
		client = aws_client.NewS3Client(&aws.Config{
			Region:      aws.String(cfg.Region),
			Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		})
	}

	return &ObjectStorageService{
		client:     client,
		bucketName: cfg.Bucket,
	}
}

// Upload stores data in object storage
func (s *ObjectStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	uploadInput := s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	return s.client.Upload(ctx, uploadInput)
}

// Download retrieves data from object storage
func (s *ObjectStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Download(ctx, s.bucketName, key)
}

// Delete removes an object from storage
func (s *ObjectStorageService) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	return s.client.Delete(ctx, s.bucketName, key)
}

// GetPublicURL is unused for the private archive bucket; keys are private.
func (s *ObjectStorageService) GetPublicURL(key string) string {
	return ""
}
