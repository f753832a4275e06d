package aws_client

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
)

// R2Config holds configuration specific to Cloudflare R2
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
}

// NewR2Client creates an S3Client configured for Cloudflare R2
func NewR2Client(config R2Config) S3Client {
	awsCfg := &aws.Config{
		Endpoint:    aws.String("https://" + config.AccountID + ".r2.cloudflarestorage.com"),
		Region:      aws.String("auto"), // R2 uses "auto" region
		Credentials: credentials.NewStaticCredentials(config.AccessKeyID, config.AccessKeySecret, ""),
		// Required for R2 compatibility
		S3ForcePathStyle: aws.Bool(true),
	}

	return NewS3Client(awsCfg)
}
