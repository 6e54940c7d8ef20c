//go:build integration

package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

// LocalStackContainer wraps a LocalStack container serving S3.
type LocalStackContainer struct {
	container *localstack.LocalStackContainer
	endpoint  string
	region    string
}

// NewLocalStackContainer starts LocalStack and waits for its health endpoint.
func NewLocalStackContainer(ctx context.Context) (*LocalStackContainer, error) {
	container, err := localstack.Run(ctx,
		"localstack/localstack:latest",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort("4566").
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start LocalStack container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &LocalStackContainer{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
		region:    "us-east-1",
	}, nil
}

// Client returns a path-style S3 client pointed at the container.
func (c *LocalStackContainer) Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(c.endpoint)
	}), nil
}

// Endpoint returns the LocalStack endpoint URL.
func (c *LocalStackContainer) Endpoint() string {
	return c.endpoint
}

// Region returns the region LocalStack is configured with.
func (c *LocalStackContainer) Region() string {
	return c.region
}

// Terminate stops and removes the container.
func (c *LocalStackContainer) Terminate(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate container: %w", err)
	}
	return nil
}

// SetupLocalStack starts LocalStack for t, creates bucket and returns the container.
// The container is terminated when the test ends.
func SetupLocalStack(t *testing.T, bucket string) (*LocalStackContainer, *s3.Client) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := NewLocalStackContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create LocalStack container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate LocalStack container: %v", err)
		}
	})

	client, err := container.Client(ctx)
	if err != nil {
		t.Fatalf("Failed to create S3 client: %v", err)
	}

	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Fatalf("Failed to create bucket: %v", err)
	}

	return container, client
}
