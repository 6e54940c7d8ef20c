package s3deploy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// WithRegion sets the AWS region.
// If not specified, the region from the credential chain is used, then us-east-1.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces path-style URLs instead of virtual-hosted style.
// Most S3-compatible services need this.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithCredentials uses a static access key instead of the default credential chain.
func WithCredentials(accessKey, secretKey string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.AccessKey = accessKey
		c.SecretKey = secretKey
	}
}

// WithAWSConfig provides a complete AWS configuration, skipping default loading.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithMaxRetries sets the maximum number of attempts the SDK retryer makes.
// Default is 3.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual S3 requests.
// Default is no timeout.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithCustomHTTPClient provides the HTTP client used for S3 requests.
// It takes precedence over WithTimeout.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithConcurrency sets the default number of concurrent uploads per deploy.
// Default is 5.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithFilesystem sets the filesystem local trees are read from.
// If not specified, the OS filesystem rooted at / is used.
func WithFilesystem(filesystem fs.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// Deploy options

// WithACL sets the access level of uploaded files. Default is private.
func WithACL(acl s3types.ObjectACL) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.ACL = acl
	}
}

// WithManifestACL sets the access level of the deploy manifest. Default is private.
func WithManifestACL(acl s3types.ObjectACL) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.ManifestACL = acl
	}
}

// WithManifestKey sets the deploy manifest key, relative to the prefix.
func WithManifestKey(key string) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.ManifestKey = key
	}
}

// WithCreateManifest allows a deploy to start from an empty deploy manifest
// when none exists yet. Without it a missing manifest is an error.
func WithCreateManifest(create bool) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.CreateManifest = create
	}
}

// WithDelete removes remote objects that no longer exist locally.
func WithDelete(del bool) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.Delete = del
	}
}

// WithForceUpload uploads every local file regardless of recorded state.
func WithForceUpload(force bool) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.ForceUpload = force
	}
}

// WithDryRun plans the deploy without changing the bucket.
func WithDryRun(dryRun bool) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.DryRun = dryRun
	}
}

// WithStrictListing fails the deploy when any bucket listing page fails,
// instead of continuing with the objects listed so far.
func WithStrictListing(strict bool) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.StrictListing = strict
	}
}

// WithIgnorePatterns excludes paths matching any doublestar pattern on both
// sides. A pattern without a slash matches the file name at any depth.
func WithIgnorePatterns(patterns ...string) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.IgnorePatterns = append(c.IgnorePatterns, patterns...)
	}
}

// WithParallelism overrides the client's upload concurrency for one deploy.
func WithParallelism(n int) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		if n > 0 {
			c.Parallelism = n
		}
	}
}

// WithDigester replaces the content digest used for change detection.
func WithDigester(d s3types.Digester) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.Digester = d
	}
}

// WithClassifier replaces the content type detection.
func WithClassifier(cl s3types.Classifier) s3types.DeployOption {
	return func(c *s3types.DeployOptionConfig) {
		c.Classifier = cl
	}
}
