// Package remote builds manifests from, and applies changes to, an S3 bucket.
//
// Keys handed to and returned from a Source are relative to its prefix, so the
// same key names a file in the local tree, the bucket and the deploy manifest.
package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/source"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/manifest"
)

// MaxDeleteBatch is the most keys S3 accepts in one DeleteObjects call.
const MaxDeleteBatch = 1000

// Source is a bucket, optionally narrowed to a key prefix.
type Source struct {
	api      s3api.S3API
	bucket   string
	prefix   string
	strict   bool
	pageSize int32
	logger   *slog.Logger
	partial  atomic.Bool
}

// Option configures a Source.
type Option func(*Source)

// WithStrictListing makes a failed listing page fatal instead of truncating the manifest.
func WithStrictListing(strict bool) Option {
	return func(s *Source) {
		s.strict = strict
	}
}

// WithPageSize caps the number of keys requested per listing page.
func WithPageSize(n int32) Option {
	return func(s *Source) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Source for bucket under prefix. A non-empty prefix is treated
// as a directory: leading slashes are dropped and a trailing one is added.
func New(api s3api.S3API, bucket, prefix string, opts ...Option) *Source {
	s := &Source{
		api:    api,
		bucket: bucket,
		prefix: NormalizePrefix(prefix),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizePrefix returns prefix in the form used to build object keys.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// Bucket returns the bucket name.
func (s *Source) Bucket() string { return s.bucket }

// Prefix returns the normalized prefix.
func (s *Source) Prefix() string { return s.prefix }

// ObjectKey returns the full object key for a relative key.
func (s *Source) ObjectKey(rel string) string {
	return s.prefix + rel
}

// relKey strips the prefix from a full object key.
func (s *Source) relKey(full string) (string, bool) {
	if !strings.HasPrefix(full, s.prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(full, s.prefix)
	return rel, rel != ""
}

// Partial reports whether the last BuildManifest stopped before the final page.
func (s *Source) Partial() bool {
	return s.partial.Load()
}

// BuildManifest lists every object under the prefix.
//
// A page that fails to load ends the listing. Unless strict listing is on, the
// entries gathered so far are returned and Partial reports true. Context
// cancellation is always fatal.
func (s *Source) BuildManifest(ctx context.Context) (*manifest.Manifest, error) {
	s.partial.Store(false)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(s.api, input, func(o *s3.ListObjectsV2PaginatorOptions) {
		if s.pageSize > 0 {
			o.Limit = s.pageSize
		}
	})

	m := manifest.New()
	for page := 1; paginator.HasMorePages(); page++ {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			if ctx.Err() != nil || s.strict {
				return nil, errors.NewError("list", fmt.Errorf("%w: %w", errors.ErrListing, err)).
					WithBucket(s.bucket).
					WithKey(s.prefix)
			}
			s.logger.Warn("listing stopped early, continuing with partial results",
				"bucket", s.bucket, "prefix", s.prefix, "page", page, "objects", m.Len(), "error", err)
			s.partial.Store(true)
			break
		}

		if out.KeyCount != nil && int(*out.KeyCount) != len(out.Contents) {
			s.logger.Warn("listing page key count mismatch",
				"bucket", s.bucket, "page", page, "reported", *out.KeyCount, "returned", len(out.Contents))
		}

		for _, obj := range out.Contents {
			full := aws.ToString(obj.Key)
			rel, ok := s.relKey(full)
			if !ok {
				s.logger.Debug("skipping object outside prefix", "key", full)
				continue
			}

			meta := manifest.FileMetadata{
				Path: full,
				Size: uint64(max(aws.ToInt64(obj.Size), 0)),
			}
			if obj.LastModified != nil {
				meta.LastModified = obj.LastModified.UTC()
			}
			if obj.ETag != nil {
				meta.ETag = manifest.String(UnquoteETag(*obj.ETag))
			}
			m.Set(rel, meta)
		}
	}

	s.logger.Debug("bucket listing complete", "bucket", s.bucket, "prefix", s.prefix, "objects", m.Len())
	return m, nil
}

// GetObject opens the object stored under key.
// A missing object is reported as errors.ErrObjectNotFound.
func (s *Source) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.ObjectKey(key)),
	})
	if err != nil {
		return nil, s.objectError("get", key, err)
	}
	return out.Body, nil
}

// PutObject uploads size bytes from body to key and returns the unquoted ETag.
// body should be seekable so the request can be signed and retried.
func (s *Source) PutObject(
	ctx context.Context,
	key string,
	body io.Reader,
	size int64,
	opts source.PutOptions,
) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.ObjectKey(key)),
		Body:          body,
		ContentLength: aws.Int64(size),
		ACL:           CannedACL(opts.ACL),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	out, err := s.api.PutObject(ctx, input)
	if err != nil {
		return "", s.objectError("put", key, err)
	}
	return UnquoteETag(aws.ToString(out.ETag)), nil
}

// DeleteObjects deletes keys in batches of at most MaxDeleteBatch.
//
// Only keys the provider lists as deleted are reported in Deleted. Keys it
// reports as failed, or leaves out of its response, are reported in Failed.
// A failed batch does not stop later batches; only cancellation returns an error.
func (s *Source) DeleteObjects(ctx context.Context, keys []string) (*source.DeleteResult, error) {
	result := &source.DeleteResult{
		Deleted: make([]string, 0, len(keys)),
		Failed:  make(map[string]string),
	}
	if len(keys) == 0 {
		return result, nil
	}

	for start := 0; start < len(keys); start += MaxDeleteBatch {
		end := min(start+MaxDeleteBatch, len(keys))
		batch := keys[start:end]

		if err := s.deleteBatch(ctx, batch, result); err != nil {
			if ctx.Err() != nil {
				return result, errors.NewError("delete", err).WithBucket(s.bucket)
			}
			s.logger.Warn("delete batch failed", "bucket", s.bucket, "keys", len(batch), "error", err)
			for _, k := range batch {
				result.Failed[k] = err.Error()
			}
		}
	}
	return result, nil
}

func (s *Source) deleteBatch(ctx context.Context, batch []string, result *source.DeleteResult) error {
	objects := make([]types.ObjectIdentifier, 0, len(batch))
	for _, k := range batch {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(s.ObjectKey(k))})
	}

	out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(false),
		},
	})
	if err != nil {
		return err
	}

	confirmed := make(map[string]bool, len(out.Deleted))
	for _, d := range out.Deleted {
		if rel, ok := s.relKey(aws.ToString(d.Key)); ok {
			confirmed[rel] = true
		}
	}
	reported := make(map[string]string, len(out.Errors))
	for _, e := range out.Errors {
		if rel, ok := s.relKey(aws.ToString(e.Key)); ok {
			reported[rel] = fmt.Sprintf("%s: %s", aws.ToString(e.Code), aws.ToString(e.Message))
		}
	}

	for _, k := range batch {
		switch {
		case confirmed[k]:
			result.Deleted = append(result.Deleted, k)
		case reported[k] != "":
			result.Failed[k] = reported[k]
		default:
			result.Failed[k] = errors.ErrDeleteUnconfirmed.Error()
		}
	}
	return nil
}

func (s *Source) objectError(op, key string, err error) error {
	if IsNotFound(err) {
		err = fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
	}
	return errors.NewObjectError(op, s.bucket, s.ObjectKey(key), err)
}

// IsNotFound reports whether err is an S3 missing-object error.
func IsNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if stderrors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if stderrors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// UnquoteETag strips the double quotes S3 wraps ETags in.
func UnquoteETag(etag string) string {
	return strings.Trim(etag, `"`)
}

var _ source.Store = (*Source)(nil)
