// Package storage delivers purchased product files through short-lived
// presigned object URLs.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DownloadLinkTTL is how long a purchased file link stays valid
const DownloadLinkTTL = 15 * time.Minute

// S3Client wraps the object store that holds product files
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client creates an S3 client for an S3-compatible endpoint
func NewS3Client(endpoint, region, bucket, accessKeyID, secretAccessKey string) (*S3Client, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		}
		return aws.Endpoint{}, fmt.Errorf("unknown endpoint requested")
	})

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, secretAccessKey, "",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3Client{client: client, bucket: bucket}, nil
}

// DownloadURL turns a product file reference into a fetchable URL.
// Absolute URLs pass through untouched; anything else is treated as an
// object key and presigned.
func (s *S3Client) DownloadURL(ctx context.Context, fileRef string) (string, error) {
	if strings.HasPrefix(fileRef, "http://") || strings.HasPrefix(fileRef, "https://") {
		return fileRef, nil
	}

	presignClient := s3.NewPresignClient(s.client)
	url, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileRef),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = DownloadLinkTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.URL, nil
}
