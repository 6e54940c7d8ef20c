// Package validation checks deploy inputs before any request is sent.
package validation

import (
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/errors"
)

// maxKeyLength is the S3 limit on object key length in bytes.
const maxKeyLength = 1024

// ValidateBucketName checks a bucket name against the S3 naming rules.
func ValidateBucketName(bucket string) error {
	invalid := func(msg string) error {
		return errors.NewError("validateBucketName", errors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage(msg)
	}

	if len(bucket) < 3 || len(bucket) > 63 {
		return invalid("bucket name must be between 3 and 63 characters long")
	}
	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return invalid("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}
	if !isAlphanumeric(bucket[0]) || !isAlphanumeric(bucket[len(bucket)-1]) {
		return invalid("bucket name must start and end with a letter or number")
	}
	if strings.Contains(bucket, "..") {
		return invalid("bucket name cannot contain two adjacent periods")
	}
	if isIPAddress(bucket) {
		return invalid("bucket name cannot be formatted as an IP address")
	}
	return nil
}

// ValidatePrefix checks a key prefix. The empty prefix is valid.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	invalid := func(msg string) error {
		return errors.NewError("validatePrefix", errors.ErrInvalidInput).
			WithKey(prefix).
			WithMessage(msg)
	}

	if len(prefix) > maxKeyLength {
		return invalid("prefix cannot exceed 1024 bytes")
	}
	if hasControlCharacters(prefix) {
		return invalid("prefix cannot contain control characters")
	}
	if hasTraversal(prefix) {
		return invalid("prefix cannot contain path traversal segments")
	}
	return nil
}

// ValidateManifestKey checks the relative key of the deploy manifest.
func ValidateManifestKey(key string) error {
	invalid := func(msg string) error {
		return errors.NewError("validateManifestKey", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage(msg)
	}

	switch {
	case key == "":
		return invalid("manifest key cannot be empty")
	case strings.HasPrefix(key, "/"):
		return invalid("manifest key must be relative")
	case strings.HasSuffix(key, "/"):
		return invalid("manifest key cannot name a directory")
	case len(key) > maxKeyLength:
		return invalid("manifest key cannot exceed 1024 bytes")
	case hasControlCharacters(key):
		return invalid("manifest key cannot contain control characters")
	case hasTraversal(key):
		return invalid("manifest key cannot contain path traversal segments")
	}
	return nil
}

func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

func isAlphanumeric(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z')
}

// isIPAddress reports whether s looks like a dotted IPv4 address.
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}
	return true
}

// hasTraversal reports whether any slash-separated segment is "..".
func hasTraversal(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func hasControlCharacters(key string) bool {
	for _, char := range key {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
