// Package storage copies finished audio to an S3 bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// PutObjectAPI is the subset of the S3 client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads containers under a fixed key per file name, so a new upload
// replaces the previous one just like the local output file.
type S3 struct {
	client  PutObjectAPI
	bucket  string
	prefix  string
	baseURL string // e.g. "https://audio.example.com"; empty gives s3:// URLs
}

// New wraps an existing client.
func New(client PutObjectAPI, bucket, prefix, baseURL string) *S3 {
	return &S3{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewFromRegion builds an instrumented S3 client from the default AWS config.
func NewFromRegion(ctx context.Context, region, bucket, prefix, baseURL string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("an S3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return New(s3.NewFromConfig(awsCfg), bucket, prefix, baseURL), nil
}

// Key returns the object key for a file name.
func (s *S3) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Upload stores data under name and returns the object key and a URL for it.
func (s *S3) Upload(ctx context.Context, name, contentType string, data []byte) (key, url string, err error) {
	key = s.Key(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload to s3: %w", err)
	}

	if s.baseURL != "" {
		return key, s.baseURL + "/" + key, nil
	}
	return key, "s3://" + s.bucket + "/" + key, nil
}
