// Package source defines the capability interfaces a deploy is built from.
//
// A Source produces a manifest of what it holds. The local tree and the bucket
// are both sources; the bucket additionally acts as a Store for the deploy
// manifest and for the objects being synchronized.
package source

import (
	"context"
	"io"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/manifest"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// Source builds a manifest of everything it currently holds.
type Source interface {
	BuildManifest(ctx context.Context) (*manifest.Manifest, error)
}

// Opener gives read access to the bytes behind a manifest entry.
type Opener interface {
	Open(meta manifest.FileMetadata) (io.ReadCloser, error)
}

// Local is a source whose entries can be read back for upload.
type Local interface {
	Source
	Opener
}

// PutOptions carries the per-object settings of an upload.
type PutOptions struct {
	Metadata    map[string]string
	ContentType string
	ACL         s3types.ObjectACL
}

// DeleteResult reports the outcome of a batch delete by relative key.
type DeleteResult struct {
	// Deleted lists keys the provider confirmed as deleted
	Deleted []string

	// Failed maps keys the provider reported or left unconfirmed to a reason
	Failed map[string]string
}

// Store is a source that can also read, write and delete objects by relative key.
type Store interface {
	Source

	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (string, error)
	DeleteObjects(ctx context.Context, keys []string) (*DeleteResult, error)
}
