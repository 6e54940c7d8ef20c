package errors

// ErrorCode classifies a per-item failure recorded in a deploy result.
// Codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// CodeUploadFailed indicates a single object upload failed.
	CodeUploadFailed ErrorCode = "UPLOAD_FAILED"

	// CodeDeleteFailed indicates the provider rejected a delete for a key.
	CodeDeleteFailed ErrorCode = "DELETE_FAILED"

	// CodeDeleteUnconfirmed indicates a delete was requested but never confirmed.
	CodeDeleteUnconfirmed ErrorCode = "DELETE_UNCONFIRMED"

	// CodeListingPartial indicates the bucket listing stopped early.
	CodeListingPartial ErrorCode = "LISTING_PARTIAL"
)
