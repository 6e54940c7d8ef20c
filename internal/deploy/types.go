package deploy

import (
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/reconcile"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// DefaultParallelism is the number of concurrent uploads when none is configured.
const DefaultParallelism = 5

// Config holds configuration for a deploy run.
type Config struct {
	// ManifestKey is the relative key of the deploy manifest
	ManifestKey string

	// ACL is applied to every uploaded file
	ACL s3types.ObjectACL

	// ManifestACL is applied to the deploy manifest
	ManifestACL s3types.ObjectACL

	// CreateManifest allows starting from an empty deploy manifest when none exists
	CreateManifest bool

	// Delete removes remote objects that no longer exist locally
	Delete bool

	// ForceUpload uploads every local file
	ForceUpload bool

	// DryRun plans without applying anything
	DryRun bool

	// IgnorePatterns are doublestar patterns excluded on both sides
	IgnorePatterns []string

	// Parallelism caps concurrent uploads
	Parallelism int
}

func (c Config) withDefaults() Config {
	if c.ManifestKey == "" {
		c.ManifestKey = s3types.DefaultManifestKey
	}
	if c.ACL == "" {
		c.ACL = s3types.ACLPrivate
	}
	if c.ManifestACL == "" {
		c.ManifestACL = s3types.ACLPrivate
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	return c
}

// Result contains the outcome of a deploy run.
type Result struct {
	// Actions is the reconciliation plan
	Actions *reconcile.Actions

	// Uploaded lists keys uploaded successfully, sorted
	Uploaded []string

	// Deleted lists keys whose deletion was confirmed, sorted
	Deleted []string

	// Skipped is the number of local files left untouched
	Skipped int

	// BytesUploaded is the total size of successful uploads
	BytesUploaded int64

	// PartialListing is set when the bucket listing ended early
	PartialListing bool

	// DryRun is set when nothing was applied
	DryRun bool

	// Errors lists per-item failures
	Errors []s3types.DeployError

	// Duration is how long the run took
	Duration time.Duration
}
