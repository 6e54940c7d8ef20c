package deploy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/ignore"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/reconcile"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/source"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/manifest"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// ManifestContentType is the content type of the stored deploy manifest.
const ManifestContentType = "application/json"

// partialLister is implemented by stores that can end a listing early.
type partialLister interface {
	Partial() bool
}

// Manager coordinates the phases of a deploy run:
// 1. Inventory: build the local and remote manifests, load the deploy manifest
// 2. Planning: reconcile the three manifests
// 3. Execution: upload, delete, persist the deploy manifest
type Manager struct {
	local  source.Local
	remote source.Store
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager deploying local to remote.
func NewManager(local source.Local, remote source.Store, opts ...Option) *Manager {
	m := &Manager{
		local:  local,
		remote: remote,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes a deploy.
//
// It fails without touching the bucket when the local scan fails, when the
// bucket listing fails fatally, or when the deploy manifest is missing (and
// may not be created) or cannot be parsed. Once execution starts, only a
// failure to persist the deploy manifest is returned as an error; the partial
// Result is returned alongside it.
func (m *Manager) Run(ctx context.Context, cfg Config) (*Result, error) {
	start := time.Now()
	cfg = cfg.withDefaults()

	matcher, err := ignore.New(cfg.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	localM, remoteM, err := m.buildManifests(ctx)
	if err != nil {
		return nil, err
	}

	deployM, err := m.loadDeployManifest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	dropIgnored(localM, matcher)
	dropIgnored(remoteM, matcher)
	dropIgnored(deployM, matcher)

	actions := reconcile.Plan(localM, remoteM, deployM, reconcile.Options{
		ForceUpload: cfg.ForceUpload,
		Delete:      cfg.Delete,
		ManifestKey: cfg.ManifestKey,
	})
	m.logPlan(actions)

	result := &Result{
		Actions:  actions,
		Uploaded: []string{},
		Deleted:  []string{},
		Skipped:  len(actions.Skipped),
		DryRun:   cfg.DryRun,
	}
	if pl, ok := m.remote.(partialLister); ok && pl.Partial() {
		result.PartialListing = true
		result.Errors = append(result.Errors, s3types.DeployError{
			Code:    errors.CodeListingPartial,
			Message: "bucket listing ended early; objects past the failed page were not considered",
		})
	}

	if cfg.DryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	m.executeUploads(ctx, cfg, actions.Upload, localM, deployM, result)

	if cfg.Delete && len(actions.Delete) > 0 {
		m.executeDeletes(ctx, actions.Delete, deployM, result)
	}

	deployM.IgnorePatterns = matcher.Patterns()
	if err := m.persist(ctx, cfg, deployM); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

// buildManifests builds the local and remote manifests concurrently.
func (m *Manager) buildManifests(ctx context.Context) (*manifest.Manifest, *manifest.Manifest, error) {
	var localM, remoteM *manifest.Manifest

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		localM, err = m.local.BuildManifest(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		remoteM, err = m.remote.BuildManifest(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	m.logger.Debug("inventory built", "local", localM.Len(), "remote", remoteM.Len())
	return localM, remoteM, nil
}

// dropIgnored removes keys matched by matcher. A local adapter may already have
// pruned them during its walk; the bucket listing and the deploy manifest never
// do, and an ignored path must not keep a deploy record.
func dropIgnored(mf *manifest.Manifest, matcher *ignore.Matcher) {
	if matcher.Empty() {
		return
	}
	for _, k := range mf.Keys() {
		if matcher.Match(k) {
			mf.Delete(k)
		}
	}
}

func (m *Manager) loadDeployManifest(ctx context.Context, cfg Config) (*manifest.Manifest, error) {
	rc, err := m.remote.GetObject(ctx, cfg.ManifestKey)
	if err != nil {
		if !errors.IsObjectNotFound(err) {
			return nil, err
		}
		if !cfg.CreateManifest {
			return nil, errors.NewError("load", fmt.Errorf("%w: %w", errors.ErrManifestNotFound, err)).
				WithKey(cfg.ManifestKey)
		}
		m.logger.Info("deploy manifest not found, starting from an empty one", "key", cfg.ManifestKey)
		return manifest.New(), nil
	}
	defer func() { _ = rc.Close() }()

	d, err := manifest.Decode(rc)
	if err != nil {
		return nil, errors.NewError("load", err).WithKey(cfg.ManifestKey)
	}
	return d, nil
}

func (m *Manager) logPlan(actions *reconcile.Actions) {
	for _, k := range actions.Upload {
		m.logger.Debug("planned upload", "key", k, "reason", actions.Reasons[k])
	}
	for _, k := range actions.Delete {
		m.logger.Debug("planned delete", "key", k)
	}
	m.logger.Info("plan ready",
		"uploads", len(actions.Upload),
		"deletes", len(actions.Delete),
		"unchanged", len(actions.Skipped))
}

// executeUploads uploads keys with at most cfg.Parallelism in flight.
// deployM and result are only touched under mu.
func (m *Manager) executeUploads(
	ctx context.Context,
	cfg Config,
	keys []string,
	localM, deployM *manifest.Manifest,
	result *Result,
) {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(cfg.Parallelism)

	for _, k := range keys {
		meta, _ := localM.Get(k)
		g.Go(func() error {
			etag, err := m.uploadOne(ctx, cfg, k, meta)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				m.logger.Warn("upload failed", "key", k, "error", err)
				rec, ok := deployM.Get(k)
				if !ok {
					rec = meta
				}
				rec.ETag = nil
				deployM.Set(k, rec)
				result.Errors = append(result.Errors, s3types.DeployError{
					Key:     k,
					Code:    errors.CodeUploadFailed,
					Message: err.Error(),
				})
				return nil
			}

			m.logger.Debug("uploaded", "key", k, "size", meta.Size)
			meta.ETag = manifest.String(etag)
			deployM.Set(k, meta)
			result.Uploaded = append(result.Uploaded, k)
			result.BytesUploaded += int64(meta.Size)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.Uploaded)
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Key < result.Errors[j].Key })
}

func (m *Manager) uploadOne(ctx context.Context, cfg Config, key string, meta manifest.FileMetadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rc, err := m.local.Open(meta)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	opts := source.PutOptions{ACL: cfg.ACL}
	if meta.ContentType != nil {
		opts.ContentType = *meta.ContentType
	}
	if meta.Checksum != nil {
		opts.Metadata = map[string]string{"checksum": *meta.Checksum}
	}
	return m.remote.PutObject(ctx, key, rc, int64(meta.Size), opts)
}

// executeDeletes deletes keys and prunes from deployM only those confirmed.
func (m *Manager) executeDeletes(ctx context.Context, keys []string, deployM *manifest.Manifest, result *Result) {
	res, err := m.remote.DeleteObjects(ctx, keys)
	if err != nil {
		m.logger.Error("delete aborted", "error", err)
	}
	if res == nil {
		return
	}

	for _, k := range res.Deleted {
		deployM.Delete(k)
	}
	result.Deleted = append(result.Deleted, res.Deleted...)
	sort.Strings(result.Deleted)

	failed := make([]string, 0, len(res.Failed))
	for k := range res.Failed {
		failed = append(failed, k)
	}
	sort.Strings(failed)
	for _, k := range failed {
		code := errors.CodeDeleteFailed
		if res.Failed[k] == errors.ErrDeleteUnconfirmed.Error() {
			code = errors.CodeDeleteUnconfirmed
		}
		m.logger.Warn("delete not applied", "key", k, "reason", res.Failed[k])
		result.Errors = append(result.Errors, s3types.DeployError{Key: k, Code: code, Message: res.Failed[k]})
	}
}

func (m *Manager) persist(ctx context.Context, cfg Config, deployM *manifest.Manifest) error {
	data, err := deployM.Marshal()
	if err != nil {
		return errors.NewError("persist", err).WithKey(cfg.ManifestKey)
	}

	_, err = m.remote.PutObject(ctx, cfg.ManifestKey, bytes.NewReader(data), int64(len(data)), source.PutOptions{
		ContentType: ManifestContentType,
		ACL:         cfg.ManifestACL,
	})
	if err != nil {
		return errors.NewError("persist", err).WithKey(cfg.ManifestKey)
	}

	m.logger.Debug("deploy manifest written", "key", cfg.ManifestKey, "entries", deployM.Len())
	return nil
}
