package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is where published artifacts (daily manifests) are written.
type ObjectStore interface {
	// Put stores body at key and returns its public URL.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type R2Config struct {
	AccountID    string
	AccessKey    string
	AccessSecret string
	Bucket       string
	CDNBaseURL   string
	// Endpoint overrides the account endpoint (S3-compatible gateways, tests).
	Endpoint string
}

// R2Client writes objects to a Cloudflare R2 bucket through the S3 API.
type R2Client struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

func NewR2Client(ctx context.Context, cfg R2Config) (*R2Client, error) {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}
	cdnBaseURL := strings.TrimRight(cfg.CDNBaseURL, "/")
	if cdnBaseURL == "" {
		cdnBaseURL = endpoint + "/" + cfg.Bucket
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.AccessSecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &R2Client{client: client, bucket: cfg.Bucket, cdnBaseURL: cdnBaseURL}, nil
}

func (r *R2Client) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=300"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return r.PublicURL(key), nil
}

// PublicURL is where clients fetch key from.
func (r *R2Client) PublicURL(key string) string {
	return r.cdnBaseURL + "/" + strings.TrimLeft(key, "/")
}
