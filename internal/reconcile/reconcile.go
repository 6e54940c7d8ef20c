package reconcile

import (
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/manifest"
)

// Reason explains why a key was selected.
type Reason string

const (
	// ReasonForced means every local file was selected for upload
	ReasonForced Reason = "forced"

	// ReasonNew means the object does not exist in the bucket
	ReasonNew Reason = "new"

	// ReasonUnrecorded means the object exists but the deploy manifest has no record of it
	ReasonUnrecorded Reason = "unrecorded"

	// ReasonChanged means the local checksum or the remote ETag differs from the record
	ReasonChanged Reason = "changed"

	// ReasonRemoved means the object has no local counterpart
	ReasonRemoved Reason = "removed"
)

// Options controls a Plan.
type Options struct {
	// ForceUpload selects every local file regardless of state
	ForceUpload bool

	// Delete enables selection of remote objects missing locally
	Delete bool

	// ManifestKey is never uploaded nor deleted
	ManifestKey string
}

// Actions is the outcome of a Plan. Slices are sorted because keys are visited in order.
type Actions struct {
	Upload  []string
	Delete  []string
	Skipped []string
	Reasons map[string]Reason
}

// Empty reports whether there is nothing to apply.
func (a *Actions) Empty() bool {
	return len(a.Upload) == 0 && len(a.Delete) == 0
}

// Plan computes the actions that bring the bucket in line with the local tree.
// Nil manifests are treated as empty.
func Plan(local, remote, deploy *manifest.Manifest, opts Options) *Actions {
	local, remote, deploy = orEmpty(local), orEmpty(remote), orEmpty(deploy)

	actions := &Actions{
		Upload:  []string{},
		Delete:  []string{},
		Skipped: []string{},
		Reasons: make(map[string]Reason),
	}

	for _, k := range local.Keys() {
		if k == opts.ManifestKey {
			continue
		}
		reason, upload := uploadReason(k, local, remote, deploy, opts.ForceUpload)
		if !upload {
			actions.Skipped = append(actions.Skipped, k)
			continue
		}
		actions.Upload = append(actions.Upload, k)
		actions.Reasons[k] = reason
	}

	if opts.Delete {
		for _, k := range remote.Keys() {
			if k == opts.ManifestKey || local.Has(k) {
				continue
			}
			actions.Delete = append(actions.Delete, k)
			actions.Reasons[k] = ReasonRemoved
		}
	}

	return actions
}

func uploadReason(k string, local, remote, deploy *manifest.Manifest, force bool) (Reason, bool) {
	if force {
		return ReasonForced, true
	}

	r, ok := remote.Get(k)
	if !ok {
		return ReasonNew, true
	}

	d, ok := deploy.Get(k)
	if !ok {
		return ReasonUnrecorded, true
	}

	l, _ := local.Get(k)
	if manifest.EqualOptional(d.ETag, r.ETag) && manifest.EqualOptional(d.Checksum, l.Checksum) {
		return "", false
	}
	return ReasonChanged, true
}

func orEmpty(m *manifest.Manifest) *manifest.Manifest {
	if m == nil {
		return manifest.New()
	}
	return m
}
