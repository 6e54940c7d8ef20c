// Package s3types provides shared type definitions for the deploy module.
package s3types

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
)

// ObjectACL represents the canned access control list applied to uploaded objects.
// The set is closed: ParseACL is the only way to build one from user input.
type ObjectACL string

// Predefined object ACLs
const (
	// ACLPrivate grants private access (default)
	ACLPrivate ObjectACL = "private"

	// ACLPublicRead grants public read access
	ACLPublicRead ObjectACL = "public-read"

	// ACLPublicReadWrite grants public read and write access
	ACLPublicReadWrite ObjectACL = "public-read-write"

	// ACLAuthenticatedRead grants authenticated users read access
	ACLAuthenticatedRead ObjectACL = "authenticated-read"

	// ACLAwsExecRead grants EC2 read access for AMI bundles
	ACLAwsExecRead ObjectACL = "aws-exec-read"

	// ACLOwnerRead grants bucket owner read access
	ACLOwnerRead ObjectACL = "bucket-owner-read"

	// ACLOwnerFullControl grants bucket owner full control
	ACLOwnerFullControl ObjectACL = "bucket-owner-full-control"
)

// ParseACL maps an access level name to an ObjectACL. Names are matched exactly;
// "public" is accepted as an alias for public-read and anything unrecognized falls
// back to the most restrictive level.
func ParseACL(name string) ObjectACL {
	switch name {
	case "authenticated-read":
		return ACLAuthenticatedRead
	case "aws-exec-read":
		return ACLAwsExecRead
	case "bucket-owner-full-control":
		return ACLOwnerFullControl
	case "bucket-owner-read":
		return ACLOwnerRead
	case "private":
		return ACLPrivate
	case "public", "public-read":
		return ACLPublicRead
	case "public-read-write":
		return ACLPublicReadWrite
	default:
		return ACLPrivate
	}
}

// DefaultManifestKey is the object key of the deploy manifest, relative to the prefix.
const DefaultManifestKey = ".deploy_manifest.json"

// Digester computes a content digest by streaming r to the end.
type Digester interface {
	Digest(r io.Reader) (string, error)
}

// Classifier returns the content type of a file from its name and leading bytes.
// head may be shorter than the file; an empty result means unknown.
type Classifier interface {
	Classify(name string, head []byte) string
}

// DeployResult contains the result of a deploy operation.
type DeployResult struct {
	// Uploaded lists the keys uploaded successfully
	Uploaded []string

	// Deleted lists the keys whose deletion was confirmed
	Deleted []string

	// FilesSkipped is the number of local files left untouched
	FilesSkipped int

	// BytesUploaded is the total bytes uploaded
	BytesUploaded int64

	// PlannedUploads lists the keys the reconciliation selected for upload
	PlannedUploads []string

	// PlannedDeletes lists the keys the reconciliation selected for deletion
	PlannedDeletes []string

	// PartialListing is set when the bucket listing stopped before the last page
	PartialListing bool

	// DryRun is set when no changes were applied
	DryRun bool

	// Errors contains per-item failures that did not abort the run
	Errors []DeployError

	// Duration is how long the deploy took
	Duration time.Duration
}

// DeployError represents a per-item failure during a deploy.
type DeployError struct {
	// Key is the relative key that failed
	Key string

	// Code classifies the failure
	Code errors.ErrorCode

	// Message is the error message
	Message string
}

// Configuration types for functional options

// ClientConfig holds configuration for the deploy client.
type ClientConfig struct {
	Region           string
	Endpoint         string
	AccessKey        string
	SecretKey        string
	MaxRetries       int
	Timeout          time.Duration
	Concurrency      int
	ForcePathStyle   bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Filesystem       fs.Filesystem
	Logger           *slog.Logger
}

// DeployOptionConfig holds configuration for deploy operations via functional options.
type DeployOptionConfig struct {
	ACL            ObjectACL
	ManifestACL    ObjectACL
	ManifestKey    string
	CreateManifest bool
	Delete         bool
	ForceUpload    bool
	DryRun         bool
	StrictListing  bool
	IgnorePatterns []string
	Parallelism    int
	Digester       Digester
	Classifier     Classifier
}

// Option is a functional option for configuring the deploy client.
type (
	Option func(*ClientConfig)
	// DeployOption is a functional option for configuring a deploy run.
	DeployOption func(*DeployOptionConfig)
)
