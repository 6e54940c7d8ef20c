package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/manifest"
)

const manifestKey = ".deploy_manifest.json"

func localEntry(sum string) manifest.FileMetadata {
	return manifest.FileMetadata{
		Path:         "/srv/" + sum,
		Size:         1,
		LastModified: time.Unix(100, 0).UTC(),
		Checksum:     manifest.String(sum),
	}
}

func remoteEntry(etag string) manifest.FileMetadata {
	return manifest.FileMetadata{
		Path:         etag,
		Size:         1,
		LastModified: time.Unix(200, 0).UTC(),
		ETag:         manifest.String(etag),
	}
}

func record(sum, etag *string) manifest.FileMetadata {
	return manifest.FileMetadata{Path: "x", Checksum: sum, ETag: etag}
}

func TestPlan_Upload(t *testing.T) {
	s := manifest.String

	tests := []struct {
		name       string
		remote     *manifest.FileMetadata
		deploy     *manifest.FileMetadata
		force      bool
		wantUpload bool
		wantReason Reason
	}{
		{
			name:       "missing remotely",
			wantUpload: true,
			wantReason: ReasonNew,
		},
		{
			name:       "missing remotely but recorded",
			deploy:     ptr(record(s("sum-1"), s("etag-1"))),
			wantUpload: true,
			wantReason: ReasonNew,
		},
		{
			name:       "present but unrecorded",
			remote:     ptr(remoteEntry("etag-1")),
			wantUpload: true,
			wantReason: ReasonUnrecorded,
		},
		{
			name:       "unchanged",
			remote:     ptr(remoteEntry("etag-1")),
			deploy:     ptr(record(s("sum-1"), s("etag-1"))),
			wantUpload: false,
		},
		{
			name:       "local content changed",
			remote:     ptr(remoteEntry("etag-1")),
			deploy:     ptr(record(s("sum-0"), s("etag-1"))),
			wantUpload: true,
			wantReason: ReasonChanged,
		},
		{
			name:       "remote overwritten by someone else",
			remote:     ptr(remoteEntry("etag-2")),
			deploy:     ptr(record(s("sum-1"), s("etag-1"))),
			wantUpload: true,
			wantReason: ReasonChanged,
		},
		{
			name:       "previous upload failed",
			remote:     ptr(remoteEntry("etag-1")),
			deploy:     ptr(record(s("sum-1"), nil)),
			wantUpload: true,
			wantReason: ReasonChanged,
		},
		{
			name:       "record without checksum",
			remote:     ptr(remoteEntry("etag-1")),
			deploy:     ptr(record(nil, s("etag-1"))),
			wantUpload: true,
			wantReason: ReasonChanged,
		},
		{
			name:       "forced overrides unchanged",
			remote:     ptr(remoteEntry("etag-1")),
			deploy:     ptr(record(s("sum-1"), s("etag-1"))),
			force:      true,
			wantUpload: true,
			wantReason: ReasonForced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, remote, deploy := manifest.New(), manifest.New(), manifest.New()
			local.Set("page.html", localEntry("sum-1"))
			if tt.remote != nil {
				remote.Set("page.html", *tt.remote)
			}
			if tt.deploy != nil {
				deploy.Set("page.html", *tt.deploy)
			}

			actions := Plan(local, remote, deploy, Options{ForceUpload: tt.force, ManifestKey: manifestKey})

			if tt.wantUpload {
				assert.Equal(t, []string{"page.html"}, actions.Upload)
				assert.Equal(t, tt.wantReason, actions.Reasons["page.html"])
				assert.Empty(t, actions.Skipped)
			} else {
				assert.Empty(t, actions.Upload)
				assert.Equal(t, []string{"page.html"}, actions.Skipped)
			}
			assert.Empty(t, actions.Delete)
		})
	}
}

func TestPlan_Delete(t *testing.T) {
	local, remote := manifest.New(), manifest.New()
	local.Set("keep.html", localEntry("a"))
	remote.Set("keep.html", remoteEntry("1"))
	remote.Set("stale.html", remoteEntry("2"))
	remote.Set("old/asset.js", remoteEntry("3"))
	remote.Set(manifestKey, remoteEntry("4"))

	t.Run("disabled", func(t *testing.T) {
		actions := Plan(local, remote, nil, Options{ManifestKey: manifestKey})
		assert.Empty(t, actions.Delete)
	})

	t.Run("enabled", func(t *testing.T) {
		actions := Plan(local, remote, nil, Options{Delete: true, ManifestKey: manifestKey})
		assert.Equal(t, []string{"old/asset.js", "stale.html"}, actions.Delete)
		assert.Equal(t, ReasonRemoved, actions.Reasons["stale.html"])
		assert.NotContains(t, actions.Delete, manifestKey)
		assert.NotContains(t, actions.Delete, "keep.html")
	})
}

func TestPlan_ManifestKeyNeverUploaded(t *testing.T) {
	local := manifest.New()
	local.Set(manifestKey, localEntry("m"))
	local.Set("index.html", localEntry("i"))

	actions := Plan(local, nil, nil, Options{ForceUpload: true, ManifestKey: manifestKey})
	assert.Equal(t, []string{"index.html"}, actions.Upload)
}

func TestPlan_Invariants(t *testing.T) {
	local, remote, deploy := manifest.New(), manifest.New(), manifest.New()
	for _, k := range []string{"a", "b", "c", "d"} {
		local.Set(k, localEntry("sum-"+k))
	}
	for _, k := range []string{"b", "c", "e", "f"} {
		remote.Set(k, remoteEntry("etag-"+k))
	}
	deploy.Set("c", record(manifest.String("sum-c"), manifest.String("etag-c")))

	actions := Plan(local, remote, deploy, Options{Delete: true, ManifestKey: manifestKey})

	for _, k := range actions.Upload {
		assert.True(t, local.Has(k), "upload %q must exist locally", k)
	}
	for _, k := range actions.Delete {
		assert.True(t, remote.Has(k), "delete %q must exist remotely", k)
		assert.False(t, local.Has(k), "delete %q must not exist locally", k)
	}
	assert.Equal(t, []string{"a", "b", "d"}, actions.Upload)
	assert.Equal(t, []string{"e", "f"}, actions.Delete)
	assert.Equal(t, []string{"c"}, actions.Skipped)
}

func TestPlan_Idempotent(t *testing.T) {
	local, remote := manifest.New(), manifest.New()
	local.Set("a", localEntry("sum-a"))
	local.Set("b", localEntry("sum-b"))

	first := Plan(local, remote, manifest.New(), Options{ManifestKey: manifestKey})
	require.Equal(t, []string{"a", "b"}, first.Upload)

	// state after a fully successful run
	deploy := manifest.New()
	for _, k := range first.Upload {
		l, _ := local.Get(k)
		l.ETag = manifest.String("etag-" + k)
		deploy.Set(k, l)
		remote.Set(k, remoteEntry("etag-"+k))
	}

	second := Plan(local, remote, deploy, Options{ManifestKey: manifestKey})
	assert.True(t, second.Empty())
	assert.Equal(t, []string{"a", "b"}, second.Skipped)
}

func TestPlan_DoesNotMutateInputs(t *testing.T) {
	local, remote, deploy := manifest.New(), manifest.New(), manifest.New()
	local.Set("a", localEntry("sum-a"))
	remote.Set("z", remoteEntry("etag-z"))

	Plan(local, remote, deploy, Options{Delete: true, ManifestKey: manifestKey})

	assert.Equal(t, []string{"a"}, local.Keys())
	assert.Equal(t, []string{"z"}, remote.Keys())
	assert.Equal(t, 0, deploy.Len())
}

func ptr[T any](v T) *T {
	return &v
}
