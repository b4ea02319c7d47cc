// Package s3 builds S3 clients for the rangefile S3 source.
package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region. Empty defers to the default chain
	// (AWS_REGION, shared config).
	Region string

	// Endpoint is an optional custom endpoint URL.
	// Used for S3-compatible services (MinIO, LocalStack, R2).
	// Example: "http://localhost:4566" for LocalStack.
	Endpoint string

	// UsePathStyle enables path-style addressing instead of virtual-hosted style.
	// Required for some S3-compatible services (e.g., LocalStack, MinIO with default config).
	UsePathStyle bool

	// AccessKeyID and SecretAccessKey, when both set, replace the default
	// credential chain with static credentials.
	AccessKeyID     string
	SecretAccessKey string
}

// Presets for S3-compatible services, selectable by name from the CLI.
var presets = map[string]ClientConfig{
	"localstack": {
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	},
	"minio": {
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	},
}

// Preset returns the named preset ("localstack" or "minio").
func Preset(name string) (ClientConfig, error) {
	cfg, ok := presets[name]
	if !ok {
		return ClientConfig{}, fmt.Errorf("s3: unknown preset %q", name)
	}
	return cfg, nil
}

// R2 returns the configuration for Cloudflare R2.
// The accountID is your Cloudflare account ID.
// Credentials should be R2 API tokens.
func R2(accountID, accessKeyID, secretAccessKey string) ClientConfig {
	return ClientConfig{
		Region:          "auto",
		Endpoint:        "https://" + accountID + ".r2.cloudflarestorage.com",
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	}
}

// Merge returns c with every non-zero field of override applied.
func (c ClientConfig) Merge(override ClientConfig) ClientConfig {
	if override.Region != "" {
		c.Region = override.Region
	}
	if override.Endpoint != "" {
		c.Endpoint = override.Endpoint
	}
	if override.UsePathStyle {
		c.UsePathStyle = true
	}
	if override.AccessKeyID != "" && override.SecretAccessKey != "" {
		c.AccessKeyID = override.AccessKeyID
		c.SecretAccessKey = override.SecretAccessKey
	}
	return c
}

// loadOptions translates the config into aws config load options.
func (c ClientConfig) loadOptions() []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, config.WithRegion(c.Region))
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	return opts
}

// clientOptions translates the config into s3 client options.
func (c ClientConfig) clientOptions() []func(*s3.Options) {
	var opts []func(*s3.Options)
	if c.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(c.Endpoint)
		})
	}
	if c.UsePathStyle {
		opts = append(opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return opts
}

// NewClient creates a new S3 client with the given configuration.
//
// For AWS S3:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{Region: "us-east-1"})
//
// For LocalStack:
//
//	cfg, _ := s3.Preset("localstack")
//	client, err := s3.NewClient(ctx, cfg)
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, cfg.loadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, cfg.clientOptions()...), nil
}
