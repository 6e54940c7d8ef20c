// Package errors provides error types and handling for deploy operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a deploy operation error with context about the operation that failed.
// It wraps the underlying AWS SDK or filesystem error with the bucket and key involved.
type Error struct {
	// Op is the operation that failed (e.g., "put", "list", "scan")
	Op string

	// Bucket is the S3 bucket name (if applicable)
	Bucket string

	// Key is the S3 object key or local path (if applicable)
	Key string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3deploy.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3deploy.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3deploy.%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3deploy.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// NewValidationError reports invalid caller input.
func NewValidationError(message string) *Error {
	return &Error{
		Op:  "validate",
		Err: fmt.Errorf("%w: %s", ErrInvalidInput, message),
	}
}

// Sentinel errors for deploy failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("s3deploy: object not found")

	// ErrManifestNotFound indicates the deploy manifest is absent and creating it was not allowed
	ErrManifestNotFound = errors.New("s3deploy: deploy manifest not found")

	// ErrManifestInvalid indicates the deploy manifest could not be parsed
	ErrManifestInvalid = errors.New("s3deploy: deploy manifest invalid")

	// ErrLocalScan indicates the local tree could not be scanned completely
	ErrLocalScan = errors.New("s3deploy: local scan failed")

	// ErrListing indicates the bucket listing failed
	ErrListing = errors.New("s3deploy: listing failed")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3deploy: invalid input")

	// ErrDeleteUnconfirmed indicates the provider did not confirm a delete
	ErrDeleteUnconfirmed = errors.New("s3deploy: delete not confirmed")
)

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
