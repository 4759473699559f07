// Package s3 implements the storage sink on Amazon S3 and S3-compatible
// object stores.
package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.StorageClient = (*Client)(nil)

// Options configures the S3 client.
type Options struct {
	// Region is the AWS region, empty for the SDK default chain.
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible stores. Path
	// style addressing is enabled when set.
	Endpoint string
}

// Client is an S3-backed implementation of driven.StorageClient.
type Client struct {
	api *s3.Client
}

// NewClient builds a client from the default AWS credential chain.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{api: api}, nil
}

// NewClientFromAPI wraps an existing S3 client, used in tests.
func NewClientFromAPI(api *s3.Client) *Client {
	return &Client{api: api}
}

// Upload writes the blob and returns the object's ETag.
func (c *Client) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := c.api.PutObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("putting object %s/%s: %w", bucket, key, err)
	}

	return aws.ToString(out.ETag), nil
}
