package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/source"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

func object(key, etag string, size int64) types.Object {
	return types.Object{
		Key:          aws.String(key),
		ETag:         aws.String(`"` + etag + `"`),
		Size:         aws.Int64(size),
		LastModified: aws.Time(time.Unix(1700000000, 0)),
	}
}

// pagedLister serves pages in order, failing on the page indexes in fail.
func pagedLister(pages [][]types.Object, fail map[int]error) *testutil.MockS3Client {
	return &testutil.MockS3Client{
		ListObjectsV2Func: func(
			_ context.Context,
			in *s3.ListObjectsV2Input,
			_ ...func(*s3.Options),
		) (*s3.ListObjectsV2Output, error) {
			idx := 0
			if in.ContinuationToken != nil {
				_, _ = fmt.Sscanf(*in.ContinuationToken, "page-%d", &idx)
			}
			if err := fail[idx]; err != nil {
				return nil, err
			}
			out := &s3.ListObjectsV2Output{
				Contents:    pages[idx],
				KeyCount:    aws.Int32(int32(len(pages[idx]))),
				IsTruncated: aws.Bool(idx < len(pages)-1),
			}
			if idx < len(pages)-1 {
				out.NextContinuationToken = aws.String(fmt.Sprintf("page-%d", idx+1))
			}
			return out, nil
		},
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"site":      "site/",
		"site/":     "site/",
		"/site":     "site/",
		"//a/b":     "a/b/",
		"a/b/c/":    "a/b/c/",
		"/":         "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NormalizePrefix(in))
		})
	}
}

func TestBuildManifest(t *testing.T) {
	t.Run("strips prefix and quotes", func(t *testing.T) {
		var gotPrefix string
		mock := &testutil.MockS3Client{
			ListObjectsV2Func: func(
				_ context.Context,
				in *s3.ListObjectsV2Input,
				_ ...func(*s3.Options),
			) (*s3.ListObjectsV2Output, error) {
				gotPrefix = aws.ToString(in.Prefix)
				return &s3.ListObjectsV2Output{
					Contents: []types.Object{
						object("site/index.html", "abc", 10),
						object("site/css/main.css", "def", 20),
						object("site/", "dir", 0),
					},
					IsTruncated: aws.Bool(false),
				}, nil
			},
		}

		s := New(mock, "bucket", "site")
		m, err := s.BuildManifest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "site/", gotPrefix)
		assert.False(t, s.Partial())
		assert.Equal(t, []string{"css/main.css", "index.html"}, m.Keys())

		meta, ok := m.Get("index.html")
		require.True(t, ok)
		assert.Equal(t, "site/index.html", meta.Path)
		assert.Equal(t, uint64(10), meta.Size)
		require.NotNil(t, meta.ETag)
		assert.Equal(t, "abc", *meta.ETag)
		assert.Nil(t, meta.Checksum)
		assert.Nil(t, meta.ContentType)
	})

	t.Run("follows every page", func(t *testing.T) {
		mock := pagedLister([][]types.Object{
			{object("a", "1", 1), object("b", "2", 1)},
			{object("c", "3", 1)},
			{object("d", "4", 1)},
		}, nil)

		s := New(mock, "bucket", "")
		m, err := s.BuildManifest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, m.Keys())
		assert.False(t, s.Partial())
	})

	t.Run("failed page yields partial manifest", func(t *testing.T) {
		mock := pagedLister([][]types.Object{
			{object("a", "1", 1)},
			{object("b", "2", 1)},
			{object("c", "3", 1)},
		}, map[int]error{1: stderrors.New("throttled")})

		s := New(mock, "bucket", "")
		m, err := s.BuildManifest(context.Background())
		require.NoError(t, err)
		assert.True(t, s.Partial())
		assert.Equal(t, []string{"a"}, m.Keys())
	})

	t.Run("strict listing fails", func(t *testing.T) {
		mock := pagedLister([][]types.Object{
			{object("a", "1", 1)},
			{object("b", "2", 1)},
		}, map[int]error{1: stderrors.New("throttled")})

		s := New(mock, "bucket", "", WithStrictListing(true))
		m, err := s.BuildManifest(context.Background())
		require.Error(t, err)
		assert.Nil(t, m)
		assert.True(t, stderrors.Is(err, errors.ErrListing))
	})

	t.Run("cancellation is fatal", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		mock := &testutil.MockS3Client{
			ListObjectsV2Func: func(
				ctx context.Context,
				_ *s3.ListObjectsV2Input,
				_ ...func(*s3.Options),
			) (*s3.ListObjectsV2Output, error) {
				cancel()
				return nil, ctx.Err()
			},
		}

		_, err := New(mock, "bucket", "").BuildManifest(ctx)
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, context.Canceled))
	})

	t.Run("page size is requested", func(t *testing.T) {
		var maxKeys int32
		mock := &testutil.MockS3Client{
			ListObjectsV2Func: func(
				_ context.Context,
				in *s3.ListObjectsV2Input,
				_ ...func(*s3.Options),
			) (*s3.ListObjectsV2Output, error) {
				maxKeys = aws.ToInt32(in.MaxKeys)
				return &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}, nil
			},
		}

		_, err := New(mock, "bucket", "", WithPageSize(7)).BuildManifest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(7), maxKeys)
	})
}

func TestGetObject(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{name: "typed no such key", err: &types.NoSuchKey{}, notFound: true},
		{name: "typed not found", err: &types.NotFound{}, notFound: true},
		{name: "generic api error", err: &smithy.GenericAPIError{Code: "NoSuchKey"}, notFound: true},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, notFound: false},
		{name: "network", err: stderrors.New("connection reset"), notFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockS3Client{
				GetObjectFunc: func(
					_ context.Context,
					_ *s3.GetObjectInput,
					_ ...func(*s3.Options),
				) (*s3.GetObjectOutput, error) {
					return nil, tt.err
				},
			}

			_, err := New(mock, "bucket", "p").GetObject(context.Background(), ".deploy_manifest.json")
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.IsObjectNotFound(err))
			assert.Contains(t, err.Error(), "p/.deploy_manifest.json")
		})
	}

	t.Run("reads body under prefix", func(t *testing.T) {
		var gotKey string
		mock := &testutil.MockS3Client{
			GetObjectFunc: func(
				_ context.Context,
				in *s3.GetObjectInput,
				_ ...func(*s3.Options),
			) (*s3.GetObjectOutput, error) {
				gotKey = aws.ToString(in.Key)
				return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("data"))}, nil
			},
		}

		rc, err := New(mock, "bucket", "p").GetObject(context.Background(), "k")
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "data", string(b))
		assert.Equal(t, "p/k", gotKey)
	})
}

func TestPutObject(t *testing.T) {
	var got *s3.PutObjectInput
	mock := &testutil.MockS3Client{
		PutObjectFunc: func(
			_ context.Context,
			in *s3.PutObjectInput,
			_ ...func(*s3.Options),
		) (*s3.PutObjectOutput, error) {
			got = in
			return &s3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
		},
	}
	s := New(mock, "bucket", "site")

	t.Run("all options", func(t *testing.T) {
		etag, err := s.PutObject(context.Background(), "a.html", strings.NewReader("x"), 1, source.PutOptions{
			Metadata:    map[string]string{"checksum": "sha256:abc"},
			ContentType: "text/html",
			ACL:         s3types.ACLPublicRead,
		})
		require.NoError(t, err)
		assert.Equal(t, "etag-1", etag)
		assert.Equal(t, "site/a.html", aws.ToString(got.Key))
		assert.Equal(t, "bucket", aws.ToString(got.Bucket))
		assert.Equal(t, "text/html", aws.ToString(got.ContentType))
		assert.Equal(t, types.ObjectCannedACLPublicRead, got.ACL)
		assert.Equal(t, int64(1), aws.ToInt64(got.ContentLength))
		assert.Equal(t, "sha256:abc", got.Metadata["checksum"])
	})

	t.Run("no content type", func(t *testing.T) {
		_, err := s.PutObject(context.Background(), "b", strings.NewReader(""), 0, source.PutOptions{})
		require.NoError(t, err)
		assert.Nil(t, got.ContentType)
		assert.Nil(t, got.Metadata)
		assert.Equal(t, types.ObjectCannedACLPrivate, got.ACL)
	})

	t.Run("failure", func(t *testing.T) {
		failing := &testutil.MockS3Client{
			PutObjectFunc: func(
				_ context.Context,
				_ *s3.PutObjectInput,
				_ ...func(*s3.Options),
			) (*s3.PutObjectOutput, error) {
				return nil, stderrors.New("boom")
			},
		}
		_, err := New(failing, "bucket", "").PutObject(context.Background(), "k", strings.NewReader(""), 0, source.PutOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestCannedACL(t *testing.T) {
	tests := map[s3types.ObjectACL]types.ObjectCannedACL{
		s3types.ACLPrivate:           types.ObjectCannedACLPrivate,
		s3types.ACLPublicRead:        types.ObjectCannedACLPublicRead,
		s3types.ACLPublicReadWrite:   types.ObjectCannedACLPublicReadWrite,
		s3types.ACLAuthenticatedRead: types.ObjectCannedACLAuthenticatedRead,
		s3types.ACLAwsExecRead:       types.ObjectCannedACLAwsExecRead,
		s3types.ACLOwnerRead:         types.ObjectCannedACLBucketOwnerRead,
		s3types.ACLOwnerFullControl:  types.ObjectCannedACLBucketOwnerFullControl,
		s3types.ObjectACL("bogus"):   types.ObjectCannedACLPrivate,
	}
	for acl, want := range tests {
		t.Run(string(acl), func(t *testing.T) {
			assert.Equal(t, want, CannedACL(acl))
		})
	}
}

func TestDeleteObjects(t *testing.T) {
	t.Run("empty input is a no-op", func(t *testing.T) {
		called := false
		mock := &testutil.MockS3Client{
			DeleteObjectsFunc: func(
				_ context.Context,
				_ *s3.DeleteObjectsInput,
				_ ...func(*s3.Options),
			) (*s3.DeleteObjectsOutput, error) {
				called = true
				return &s3.DeleteObjectsOutput{}, nil
			},
		}

		res, err := New(mock, "bucket", "").DeleteObjects(context.Background(), nil)
		require.NoError(t, err)
		assert.False(t, called)
		assert.Empty(t, res.Deleted)
		assert.Empty(t, res.Failed)
	})

	t.Run("batches at the provider limit", func(t *testing.T) {
		var mu sync.Mutex
		var sizes []int
		mock := &testutil.MockS3Client{
			DeleteObjectsFunc: func(
				_ context.Context,
				in *s3.DeleteObjectsInput,
				_ ...func(*s3.Options),
			) (*s3.DeleteObjectsOutput, error) {
				mu.Lock()
				sizes = append(sizes, len(in.Delete.Objects))
				mu.Unlock()
				out := &s3.DeleteObjectsOutput{}
				for _, o := range in.Delete.Objects {
					out.Deleted = append(out.Deleted, types.DeletedObject{Key: o.Key})
				}
				return out, nil
			},
		}

		keys := make([]string, 2500)
		for i := range keys {
			keys[i] = fmt.Sprintf("f%04d", i)
		}

		res, err := New(mock, "bucket", "pre").DeleteObjects(context.Background(), keys)
		require.NoError(t, err)
		assert.Equal(t, []int{1000, 1000, 500}, sizes)
		assert.ElementsMatch(t, keys, res.Deleted)
		assert.Empty(t, res.Failed)
	})

	t.Run("only confirmed keys are reported deleted", func(t *testing.T) {
		mock := &testutil.MockS3Client{
			DeleteObjectsFunc: func(
				_ context.Context,
				_ *s3.DeleteObjectsInput,
				_ ...func(*s3.Options),
			) (*s3.DeleteObjectsOutput, error) {
				return &s3.DeleteObjectsOutput{
					Deleted: []types.DeletedObject{{Key: aws.String("p/a")}},
					Errors: []types.Error{{
						Key:     aws.String("p/b"),
						Code:    aws.String("AccessDenied"),
						Message: aws.String("denied"),
					}},
				}, nil
			},
		}

		res, err := New(mock, "bucket", "p").DeleteObjects(context.Background(), []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, res.Deleted)
		assert.Equal(t, "AccessDenied: denied", res.Failed["b"])
		assert.Equal(t, errors.ErrDeleteUnconfirmed.Error(), res.Failed["c"])
	})

	t.Run("failed batch does not stop the next", func(t *testing.T) {
		calls := 0
		mock := &testutil.MockS3Client{
			DeleteObjectsFunc: func(
				_ context.Context,
				in *s3.DeleteObjectsInput,
				_ ...func(*s3.Options),
			) (*s3.DeleteObjectsOutput, error) {
				calls++
				if calls == 1 {
					return nil, stderrors.New("503")
				}
				out := &s3.DeleteObjectsOutput{}
				for _, o := range in.Delete.Objects {
					out.Deleted = append(out.Deleted, types.DeletedObject{Key: o.Key})
				}
				return out, nil
			},
		}

		keys := make([]string, 1001)
		for i := range keys {
			keys[i] = fmt.Sprintf("k%04d", i)
		}

		res, err := New(mock, "bucket", "").DeleteObjects(context.Background(), keys)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []string{"k1000"}, res.Deleted)
		assert.Len(t, res.Failed, 1000)
	})
}

func TestSourceAgainstFakeS3(t *testing.T) {
	fake := testutil.NewFakeS3(t, "deploy-bucket")
	fake.Put(t, "other/untouched.txt", "keep")

	s := New(fake.Client, fake.Bucket, "site", WithPageSize(2))
	ctx := context.Background()

	for _, k := range []string{"a.txt", "b.txt", "dir/c.txt", "dir/d.txt", "e.txt"} {
		etag, err := s.PutObject(ctx, k, strings.NewReader("content of "+k), int64(len("content of "+k)), source.PutOptions{
			ContentType: "text/plain",
			Metadata:    map[string]string{"checksum": "sha256:x"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, etag)
		assert.NotContains(t, etag, `"`)
	}

	m, err := s.BuildManifest(ctx)
	require.NoError(t, err)
	assert.False(t, s.Partial())
	assert.Equal(t, []string{"a.txt", "b.txt", "dir/c.txt", "dir/d.txt", "e.txt"}, m.Keys())

	rc, err := s.GetObject(ctx, "dir/c.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "content of dir/c.txt", string(body))

	_, err = s.GetObject(ctx, "missing.json")
	require.Error(t, err)
	assert.True(t, errors.IsObjectNotFound(err))

	res, err := s.DeleteObjects(ctx, []string{"a.txt", "dir/d.txt"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "dir/d.txt"}, res.Deleted)

	assert.ElementsMatch(t,
		[]string{"other/untouched.txt", "site/b.txt", "site/dir/c.txt", "site/e.txt"},
		fake.Keys(t))
}
