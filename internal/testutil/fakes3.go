package testutil

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/require"
)

// FakeS3 is an in-process S3 server backed by memory.
type FakeS3 struct {
	Client   *s3.Client
	Endpoint string
	Bucket   string
}

// NewFakeS3 starts an in-memory S3 server, creates bucket on it and returns a
// path-style client pointed at it. The server is closed when the test ends.
func NewFakeS3(t *testing.T, bucket string) *FakeS3 {
	t.Helper()

	backend := s3mem.New()
	server := gofakes3.New(backend)
	ts := httptest.NewServer(server.Server())
	t.Cleanup(ts.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(ts.URL),
		UsePathStyle: true,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider("test-access-key", "test-secret-key", ""),
		),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	return &FakeS3{Client: client, Endpoint: ts.URL, Bucket: bucket}
}

// Keys lists every key in the bucket, in listing order.
func (f *FakeS3) Keys(t *testing.T) []string {
	t.Helper()

	var keys []string
	p := s3.NewListObjectsV2Paginator(f.Client, &s3.ListObjectsV2Input{Bucket: aws.String(f.Bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(context.Background())
		require.NoError(t, err)
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys
}

// Put writes body under key.
func (f *FakeS3) Put(t *testing.T, key, body string) {
	t.Helper()

	_, err := f.Client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(f.Bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(body),
	})
	require.NoError(t, err)
}
