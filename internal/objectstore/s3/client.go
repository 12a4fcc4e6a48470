package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/italolelis/batch_archiver/internal/transfer"
)

const defaultRegion = "us-east-1"

// PutObjectAPI is the slice of the S3 API this client needs. *s3.Client
// satisfies it; tests provide a mock.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

var _ PutObjectAPI = (*awss3.Client)(nil)

// Options configures the S3 client.
type Options struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	// Endpoint points the client at an S3-compatible service instead of AWS.
	Endpoint     string
	UsePathStyle bool
}

type Client struct {
	api PutObjectAPI
}

// NewClient builds a client from static credentials. No network activity
// happens until the first Put.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return NewClientWithAPI(awss3.NewFromConfig(cfg, s3Options(opts)...)), nil
}

// NewClientWithAPI wraps an existing S3 API implementation.
func NewClientWithAPI(api PutObjectAPI) *Client {
	return &Client{api: api}
}

func s3Options(opts Options) []func(*awss3.Options) {
	var fns []func(*awss3.Options)

	if opts.Endpoint != "" {
		fns = append(fns, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// S3-compatible stores commonly reject the default trailing checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		})
	}

	if opts.UsePathStyle {
		fns = append(fns, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	return fns
}

// Put uploads one object. Store errors are passed through wrapped in a
// *transfer.StorageError.
func (c *Client) Put(ctx context.Context, req *transfer.PutRequest) error {
	input := &awss3.PutObjectInput{
		Bucket:        aws.String(req.Bucket),
		Key:           aws.String(req.Key),
		Body:          req.Body,
		ContentLength: aws.Int64(req.ContentLength),
	}

	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	if _, err := c.api.PutObject(ctx, input); err != nil {
		return &transfer.StorageError{
			Operation: "put_object",
			Bucket:    req.Bucket,
			Key:       req.Key,
			Err:       err,
		}
	}

	return nil
}
