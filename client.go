package s3deploy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// DefaultRegion is used when neither the options nor the environment name one.
const DefaultRegion = "us-east-1"

// configLoadTimeout bounds credential and region discovery.
const configLoadTimeout = 30 * time.Second

// Client deploys to S3. It holds one storage client that every deploy shares,
// and is safe for concurrent use.
type Client struct {
	s3Client    s3api.S3API
	fs          fs.Filesystem
	logger      *slog.Logger
	concurrency int
}

// New creates a Client with the provided options.
// Credentials come from the default AWS chain unless WithCredentials or
// WithAWSConfig is given.
//
// Example:
//
//	client, err := s3deploy.New(
//	    s3deploy.WithRegion("us-west-2"),
//	    s3deploy.WithEndpoint("http://localhost:9000"),
//	    s3deploy.WithForcePathStyle(true),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(clientCfg)
	}

	var cfg aws.Config
	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		var loadOpts []func(*config.LoadOptions) error
		if clientCfg.AccessKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(clientCfg.AccessKey, clientCfg.SecretKey, ""),
			))
		}

		ctx, cancel := context.WithTimeout(context.Background(), configLoadTimeout)
		defer cancel()

		var err error
		cfg, err = config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if clientCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(clientCfg.Endpoint)
		}
		o.UsePathStyle = clientCfg.ForcePathStyle

		switch {
		case clientCfg.CustomHTTPClient != nil:
			o.HTTPClient = clientCfg.CustomHTTPClient
		case clientCfg.Timeout > 0:
			o.HTTPClient = &http.Client{Timeout: clientCfg.Timeout}
		}
	})

	return newClient(s3Client, clientCfg), nil
}

// NewWithClient creates a Client around an existing S3API implementation.
// This is primarily used for testing and for callers that build their own *s3.Client.
func NewWithClient(s3Client s3api.S3API, opts ...s3types.Option) *Client {
	clientCfg := defaultClientConfig()
	for _, opt := range opts {
		opt(clientCfg)
	}
	return newClient(s3Client, clientCfg)
}

func defaultClientConfig() *s3types.ClientConfig {
	return &s3types.ClientConfig{
		MaxRetries:  3,
		Concurrency: 5,
	}
}

func newClient(s3Client s3api.S3API, clientCfg *s3types.ClientConfig) *Client {
	c := &Client{
		s3Client:    s3Client,
		fs:          clientCfg.Filesystem,
		logger:      clientCfg.Logger,
		concurrency: clientCfg.Concurrency,
	}
	if c.fs == nil {
		// Default to OS filesystem rooted at /
		c.fs = billy.NewOSFS("/")
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}
