// Package s3 implements storage.Client for S3-compatible object storage
// (AWS S3, MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/storage"
)

// DefaultURLExpiry is used when no presigned-URL lifetime is configured.
const DefaultURLExpiry = 15 * time.Minute

// Client implements storage.Client backed by an S3 bucket.
type Client struct {
	s3        *awss3.Client
	presign   *awss3.PresignClient
	bucket    string
	urlExpiry time.Duration
}

// NewClient builds an S3 storage client from configuration. A non-empty
// endpoint selects an S3-compatible server (MinIO) with path-style
// addressing.
func NewClient(ctx context.Context, cfg config.Storage) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	s3Client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}

	return &Client{
		s3:        s3Client,
		presign:   awss3.NewPresignClient(s3Client),
		bucket:    cfg.Bucket,
		urlExpiry: expiry,
	}, nil
}

func (c *Client) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	var files []storage.FileInfo

	paginator := awss3.NewListObjectsV2Paginator(c.s3, &awss3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			files = append(files, storage.FileInfo{
				Name:       baseName(aws.ToString(obj.Key)),
				Path:       aws.ToString(obj.Key),
				Size:       aws.ToInt64(obj.Size),
				ModifiedAt: aws.ToTime(obj.LastModified),
			})
		}
	}

	return files, nil
}

func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %q: %w", path, err)
	}
	return out.Body, nil
}

func (c *Client) Upload(ctx context.Context, path string, content io.Reader, contentType string) error {
	input := &awss3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
		Body:   content,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %q: %w", path, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.s3.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", path, err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %q: %w", path, err)
	}
	return true, nil
}

func (c *Client) GetMetadata(ctx context.Context, path string) (*storage.FileInfo, error) {
	out, err := c.s3.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for %q: %w", path, err)
	}

	return &storage.FileInfo{
		Name:        baseName(path),
		Path:        path,
		Size:        aws.ToInt64(out.ContentLength),
		ModifiedAt:  aws.ToTime(out.LastModified),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

func (c *Client) GetDownloadURL(ctx context.Context, path string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	}, awss3.WithPresignExpires(c.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %q: %w", path, err)
	}
	return req.URL, nil
}

// baseName returns the final path segment of an object key.
func baseName(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
