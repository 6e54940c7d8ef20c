package local

import (
	_ "crypto/sha256" // registers the canonical algorithm
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// SHA256Digester computes canonical "sha256:<hex>" digests.
type SHA256Digester struct{}

// Digest streams r into a SHA-256 digester using a pooled copy buffer.
func (SHA256Digester) Digest(r io.Reader) (string, error) {
	buf := pool.GetCopyBuffer()
	defer pool.PutCopyBuffer(buf)

	d := digest.Canonical.Digester()
	if _, err := io.CopyBuffer(d.Hash(), r, buf); err != nil {
		return "", fmt.Errorf("failed to digest content: %w", err)
	}
	return d.Digest().String(), nil
}

var _ s3types.Digester = SHA256Digester{}
