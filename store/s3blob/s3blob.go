// Package s3blob stores encoded images — scanned pages, signature payloads,
// flattened signed documents — in an S3-compatible bucket. It works against
// AWS proper or a MinIO endpoint via the BaseEndpoint override, and hands out
// presigned GET URLs so clients fetch images without holding credentials.
package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/wudi/signkit/gateway"
)

// Config carries the connection settings. Endpoint is optional; set it for
// MinIO or another S3-compatible store. AccessKey/SecretKey are optional and
// fall back to the ambient AWS credential chain.
type Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Client is an S3-backed blob store.
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New builds a client from the config.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Client{s3: client, presign: s3.NewPresignClient(client), bucket: cfg.Bucket}, nil
}

// SignedImageKey returns a fresh storage key for a flattened signed document.
func SignedImageKey(ownerID string) string {
	return fmt.Sprintf("users/%s/signed/%s.png", ownerID, uuid.NewString())
}

// SignaturePayloadKey returns a fresh storage key for a captured signature.
func SignaturePayloadKey(ownerID string) string {
	return fmt.Sprintf("users/%s/signatures/%s.png", ownerID, uuid.NewString())
}

// Put uploads data under key with the given content type.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w: %w", key, gateway.ErrStorage, err)
	}
	return nil
}

// Load fetches the bytes under ref. It satisfies the composition engine's
// base image loader.
func (c *Client) Load(ctx context.Context, ref string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("s3blob: get %s: %w", ref, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read %s: %w", ref, err)
	}
	return data, nil
}

// PresignGet returns a time-limited GET URL for key.
func (c *Client) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("s3blob: presign %s: %w", key, err)
	}
	return req.URL, nil
}
