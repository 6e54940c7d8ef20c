package local

import (
	"mime"
	"path"

	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// DefaultContentType is used when nothing better is known.
const DefaultContentType = "application/octet-stream"

// ContentClassifier picks a content type from the file extension and falls back
// to sniffing the leading bytes.
type ContentClassifier struct{}

// Classify implements s3types.Classifier.
func (ContentClassifier) Classify(name string, head []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	if len(head) == 0 {
		return DefaultContentType
	}
	return mimetype.Detect(head).String()
}

var _ s3types.Classifier = ContentClassifier{}
