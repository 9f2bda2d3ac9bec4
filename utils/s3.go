package utils

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// PresignExpiry is how long an exported result link stays valid
const PresignExpiry = 1 * time.Hour

// S3Exporter uploads result files to S3 and hands out presigned links
type S3Exporter struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	logger  *zap.Logger
}

// NewS3Exporter initializes the S3 client for bucket in region
func NewS3Exporter(ctx context.Context, region, bucket, prefix string, logger *zap.Logger) (*S3Exporter, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	logger.Info("S3 Client Initialized", zap.String("bucket", bucket), zap.String("region", region))
	return &S3Exporter{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  prefix,
		logger:  logger,
	}, nil
}

// Export uploads a CSV body under name and returns a presigned download URL
func (e *S3Exporter) Export(ctx context.Context, name string, body []byte) (string, error) {
	objectKey := e.prefix + "/" + name

	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(e.bucket),
		Key:                aws.String(objectKey),
		Body:               bytes.NewReader(body),
		ContentType:        aws.String("text/csv"),
		ContentDisposition: aws.String(`attachment; filename="scraped_images.csv"`),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}

	request, err := e.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}

	e.logger.Info("Exported results to S3", zap.String("key", objectKey))
	return request.URL, nil
}
