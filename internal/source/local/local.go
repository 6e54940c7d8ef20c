// Package local builds manifests from a directory tree.
//
// The tree is walked through an fs.Filesystem without following symbolic
// links. Names starting with a dot are excluded, and excluded directories are
// pruned rather than filtered afterwards: their contents are never read, so an
// unreadable excluded directory does not fail the scan. The root itself is
// exempt, so a root such as "./.site" is still scanned.
package local

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/ignore"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/source"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/manifest"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// Source scans a directory rooted at root inside filesystem.
type Source struct {
	filesystem fs.Filesystem
	root       string
	digester   s3types.Digester
	classifier s3types.Classifier
	ignore     *ignore.Matcher
	logger     *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithDigester replaces the default SHA-256 digester.
func WithDigester(d s3types.Digester) Option {
	return func(s *Source) {
		if d != nil {
			s.digester = d
		}
	}
}

// WithClassifier replaces the default content classifier.
func WithClassifier(c s3types.Classifier) Option {
	return func(s *Source) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithIgnore excludes paths matched by m.
func WithIgnore(m *ignore.Matcher) Option {
	return func(s *Source) {
		s.ignore = m
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

// New creates a Source for root inside filesystem.
func New(filesystem fs.Filesystem, root string, opts ...Option) *Source {
	s := &Source{
		filesystem: filesystem,
		root:       filepath.Clean(root),
		digester:   SHA256Digester{},
		classifier: ContentClassifier{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the cleaned root path.
func (s *Source) Root() string {
	return s.root
}

// BuildManifest walks the tree and describes every regular file in it.
// Any error aborts the scan; a partial manifest is never returned.
func (s *Source) BuildManifest(ctx context.Context) (*manifest.Manifest, error) {
	info, err := s.filesystem.Stat(s.root)
	if err != nil {
		return nil, s.scanError(s.root, err)
	}
	if !info.IsDir() {
		return nil, s.scanError(s.root, fmt.Errorf("not a directory"))
	}

	m := manifest.New()
	m.IgnorePatterns = s.ignore.Patterns()

	err = s.filesystem.Walk(s.root, func(p string, fi os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return s.scanError(p, err)
		}
		if p == s.root || fi == nil {
			if walkErr != nil {
				return s.scanError(p, walkErr)
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return s.scanError(p, err)
		}
		rel = filepath.ToSlash(rel)

		// A directory is reported after its entries were read, so exclusion
		// has to win over walkErr for the prune to hold.
		if strings.HasPrefix(fi.Name(), ".") || s.ignore.Match(rel) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if walkErr != nil {
			return s.scanError(p, walkErr)
		}

		switch {
		case fi.Mode()&os.ModeSymlink != 0:
			s.logger.Debug("skipping symlink", "path", rel)
			return nil
		case fi.IsDir():
			return nil
		case !fi.Mode().IsRegular():
			s.logger.Debug("skipping irregular file", "path", rel, "mode", fi.Mode().String())
			return nil
		}

		meta, err := s.describe(p, fi)
		if err != nil {
			return s.scanError(p, err)
		}
		m.Set(rel, meta)
		return nil
	})
	if err != nil {
		var scanErr *errors.Error
		if stderrors.As(err, &scanErr) {
			return nil, scanErr
		}
		return nil, s.scanError(s.root, err)
	}

	s.logger.Debug("local scan complete", "root", s.root, "files", m.Len())
	return m, nil
}

// describe reads p once, feeding the leading bytes to the classifier and the
// whole stream to the digester.
func (s *Source) describe(p string, fi os.FileInfo) (manifest.FileMetadata, error) {
	f, err := s.filesystem.Open(p)
	if err != nil {
		return manifest.FileMetadata{}, err
	}
	defer func() { _ = f.Close() }()

	head := pool.GetHeadBuffer()
	defer pool.PutHeadBuffer(head)

	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return manifest.FileMetadata{}, err
	}
	head = head[:n]

	sum, err := s.digester.Digest(io.MultiReader(bytes.NewReader(head), f))
	if err != nil {
		return manifest.FileMetadata{}, err
	}

	return manifest.FileMetadata{
		Path:         p,
		Size:         uint64(fi.Size()),
		LastModified: fi.ModTime().UTC(),
		Checksum:     manifest.String(sum),
		ContentType:  manifest.String(s.classifier.Classify(fi.Name(), head)),
	}, nil
}

// Open implements source.Opener.
func (s *Source) Open(meta manifest.FileMetadata) (io.ReadCloser, error) {
	f, err := s.filesystem.Open(meta.Path)
	if err != nil {
		return nil, errors.NewError("open", err).WithKey(meta.Path)
	}
	return f, nil
}

func (s *Source) scanError(p string, err error) error {
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return errors.NewError("scan", fmt.Errorf("%w: %w", errors.ErrLocalScan, err)).WithKey(p)
}

var _ source.Local = (*Source)(nil)
