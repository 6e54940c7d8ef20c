// Package manifest defines the key-path to metadata map shared by every part of a deploy.
//
// A Manifest plays one of three roles during a run: the local scan (content truth),
// the bucket listing (existence truth) and the deploy manifest persisted in the bucket
// (last known correspondence between the two). The same relative, forward-slash key
// must be used for a file in all three roles.
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/opencontainers/go-digest"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
)

// FileMetadata describes one file or object.
type FileMetadata struct {
	// Path is where the bytes live: an absolute local path or a full object key.
	Path string `json:"path"`

	// Size is the length in bytes.
	Size uint64 `json:"size"`

	// LastModified is the local mtime or the remote write time. The two are not comparable.
	LastModified time.Time `json:"last_modified"`

	// Checksum is the local content digest. Remote entries leave it nil.
	Checksum *string `json:"checksum"`

	// ETag is the remote fingerprint. Local entries leave it nil.
	ETag *string `json:"etag"`

	// ContentType is the MIME type, when known.
	ContentType *string `json:"content_type"`
}

// UnmarshalJSON decodes an entry, also accepting the form older deploy
// manifests were written in: last_modified as fractional Unix seconds, quoted
// etags and bare hex SHA-256 checksums.
func (m *FileMetadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		Path         string          `json:"path"`
		Size         uint64          `json:"size"`
		LastModified json.RawMessage `json:"last_modified"`
		Checksum     *string         `json:"checksum"`
		ETag         *string         `json:"etag"`
		ContentType  *string         `json:"content_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	lastModified, err := parseTimestamp(raw.LastModified)
	if err != nil {
		return err
	}

	*m = FileMetadata{
		Path:         raw.Path,
		Size:         raw.Size,
		LastModified: lastModified,
		Checksum:     canonicalChecksum(raw.Checksum),
		ETag:         unquoteETag(raw.ETag),
		ContentType:  raw.ContentType,
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	value := bytes.TrimSpace(raw)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return time.Time{}, nil
	}

	if value[0] == '"' {
		var t time.Time
		if err := t.UnmarshalJSON(value); err != nil {
			return time.Time{}, fmt.Errorf("last_modified: %w", err)
		}
		return t, nil
	}

	secs, err := strconv.ParseFloat(string(value), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("last_modified: %w", err)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC(), nil
}

func canonicalChecksum(c *string) *string {
	if c == nil || digest.SHA256.Validate(*c) != nil {
		return c
	}
	return String(digest.NewDigestFromEncoded(digest.SHA256, *c).String())
}

func unquoteETag(etag *string) *string {
	if etag == nil {
		return nil
	}
	return String(strings.Trim(*etag, `"`))
}

// Equal reports whether every field of m and other is equal.
func (m FileMetadata) Equal(other FileMetadata) bool {
	return m.Path == other.Path &&
		m.Size == other.Size &&
		m.LastModified.Equal(other.LastModified) &&
		optionalIdentical(m.Checksum, other.Checksum) &&
		optionalIdentical(m.ETag, other.ETag) &&
		optionalIdentical(m.ContentType, other.ContentType)
}

// EqualOptional compares two optional fingerprints. An absent value is never equal
// to anything, so a record with a nulled etag always reads as stale.
func EqualOptional(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func optionalIdentical(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// String returns a pointer to s, for filling optional fields.
func String(s string) *string {
	return &s
}

// Manifest maps relative paths to metadata.
type Manifest struct {
	// Files is keyed by forward-slash relative path without a leading slash.
	Files map[string]FileMetadata `json:"files"`

	// IgnorePatterns are the doublestar patterns the manifest was built with.
	IgnorePatterns []string `json:"ignore_patterns"`
}

// New creates an empty manifest.
func New() *Manifest {
	return &Manifest{
		Files:          make(map[string]FileMetadata),
		IgnorePatterns: []string{},
	}
}

// Set inserts or replaces the entry for key.
func (m *Manifest) Set(key string, meta FileMetadata) {
	if m.Files == nil {
		m.Files = make(map[string]FileMetadata)
	}
	m.Files[key] = meta
}

// Get looks up key. Absence is not an error.
func (m *Manifest) Get(key string) (FileMetadata, bool) {
	meta, ok := m.Files[key]
	return meta, ok
}

// Has reports whether key is present.
func (m *Manifest) Has(key string) bool {
	_, ok := m.Files[key]
	return ok
}

// Delete removes key if present.
func (m *Manifest) Delete(key string) {
	delete(m.Files, key)
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.Files)
}

// Keys returns all keys in sorted order.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Files))
	for k := range m.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether m and other hold the same entries and ignore patterns.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.Files) != len(other.Files) || len(m.IgnorePatterns) != len(other.IgnorePatterns) {
		return false
	}
	for i, p := range m.IgnorePatterns {
		if other.IgnorePatterns[i] != p {
			return false
		}
	}
	for k, meta := range m.Files {
		o, ok := other.Files[k]
		if !ok || !meta.Equal(o) {
			return false
		}
	}
	return true
}

// Marshal serializes the manifest to JSON. Map keys are emitted in sorted order,
// so the output is stable for a given manifest.
func (m *Manifest) Marshal() ([]byte, error) {
	out := m
	if m.IgnorePatterns == nil || m.Files == nil {
		cp := *m
		if cp.IgnorePatterns == nil {
			cp.IgnorePatterns = []string{}
		}
		if cp.Files == nil {
			cp.Files = map[string]FileMetadata{}
		}
		out = &cp
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

// Encode writes the JSON form of the manifest to w.
func (m *Manifest) Encode(w io.Writer) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Unmarshal parses a manifest from JSON.
func Unmarshal(data []byte) (*Manifest, error) {
	var raw struct {
		Files          *map[string]FileMetadata `json:"files"`
		IgnorePatterns []string                 `json:"ignore_patterns"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrManifestInvalid, err)
	}
	if raw.Files == nil {
		return nil, fmt.Errorf("%w: missing files object", errors.ErrManifestInvalid)
	}

	m := New()
	for k, meta := range *raw.Files {
		if k == "" || strings.HasPrefix(k, "/") {
			return nil, fmt.Errorf("%w: invalid key %q", errors.ErrManifestInvalid, k)
		}
		m.Files[k] = meta
	}
	if raw.IgnorePatterns != nil {
		m.IgnorePatterns = raw.IgnorePatterns
	}
	return m, nil
}

// Decode reads a manifest from r.
func Decode(r io.Reader) (*Manifest, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Unmarshal(buf.Bytes())
}
