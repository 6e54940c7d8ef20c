package s3deploy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/deploy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/ignore"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/source/local"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/source/remote"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// Deploy synchronizes the directory at localPath to bucket under prefix.
//
// The deploy follows a three-phase approach:
// 1. Inventory: scan the local tree and list the bucket concurrently, then load the deploy manifest
// 2. Planning: reconcile the three manifests
// 3. Execution: upload changed files, delete removed ones if enabled, write the deploy manifest
//
// Hidden files and directories (names starting with a dot) are never deployed.
// The deploy manifest lives at prefix + manifest key and is never uploaded from
// the local tree nor deleted.
//
// Returns:
//   - *DeployResult: statistics and per-item errors; also returned alongside a
//     failure to write the deploy manifest
//   - error: returns an error if the deploy could not run or its outcome could not be recorded
//
// Errors:
//   - ErrInvalidInput: if localPath, bucket, prefix, manifest key or an ignore pattern is invalid
//   - ErrLocalScan: if any part of the local tree cannot be read
//   - ErrListing: if the listing fails under WithStrictListing, or is cancelled
//   - ErrManifestNotFound: if no deploy manifest exists and WithCreateManifest was not given
//   - ErrManifestInvalid: if the stored deploy manifest cannot be parsed
//
// Example:
//
//	result, err := client.Deploy(ctx, "./public", "my-bucket", "site/",
//	    s3deploy.WithDelete(true),
//	    s3deploy.WithIgnorePatterns("*.map"),
//	)
//	if err != nil {
//	    return fmt.Errorf("deploy failed: %w", err)
//	}
//	fmt.Printf("Uploaded %d files (%d bytes)\n", len(result.Uploaded), result.BytesUploaded)
func (c *Client) Deploy(
	ctx context.Context,
	localPath, bucket, prefix string,
	opts ...s3types.DeployOption,
) (*s3types.DeployResult, error) {
	cfg := &s3types.DeployOptionConfig{
		ACL:            s3types.ACLPrivate,
		ManifestACL:    s3types.ACLPrivate,
		ManifestKey:    s3types.DefaultManifestKey,
		IgnorePatterns: []string{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if localPath == "" {
		return nil, errors.NewValidationError("localPath cannot be empty")
	}
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if err := validation.ValidateManifestKey(cfg.ManifestKey); err != nil {
		return nil, err
	}

	matcher, err := ignore.New(cfg.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, errors.NewError("deploy", fmt.Errorf("failed to resolve local path: %w", err))
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = c.concurrency
	}

	logger := c.logger.With("bucket", bucket, "prefix", prefix)

	localSrc := local.New(c.fs, absPath,
		local.WithIgnore(matcher),
		local.WithDigester(cfg.Digester),
		local.WithClassifier(cfg.Classifier),
		local.WithLogger(logger),
	)
	remoteSrc := remote.New(c.s3Client, bucket, prefix,
		remote.WithStrictListing(cfg.StrictListing),
		remote.WithLogger(logger),
	)

	mgr := deploy.NewManager(localSrc, remoteSrc, deploy.WithLogger(logger))
	res, err := mgr.Run(ctx, deploy.Config{
		ManifestKey:    cfg.ManifestKey,
		ACL:            s3types.ParseACL(string(cfg.ACL)),
		ManifestACL:    s3types.ParseACL(string(cfg.ManifestACL)),
		CreateManifest: cfg.CreateManifest,
		Delete:         cfg.Delete,
		ForceUpload:    cfg.ForceUpload,
		DryRun:         cfg.DryRun,
		IgnorePatterns: matcher.Patterns(),
		Parallelism:    parallelism,
	})
	if res == nil {
		return nil, err
	}
	return convertResult(res), err
}

func convertResult(res *deploy.Result) *s3types.DeployResult {
	out := &s3types.DeployResult{
		Uploaded:       res.Uploaded,
		Deleted:        res.Deleted,
		FilesSkipped:   res.Skipped,
		BytesUploaded:  res.BytesUploaded,
		PartialListing: res.PartialListing,
		DryRun:         res.DryRun,
		Errors:         res.Errors,
		Duration:       res.Duration,
	}
	if res.Actions != nil {
		out.PlannedUploads = res.Actions.Upload
		out.PlannedDeletes = res.Actions.Delete
	}
	return out
}
