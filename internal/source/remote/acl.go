package remote

import (
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

// CannedACL maps an access level to the SDK's canned ACL.
// Every s3types.ObjectACL has an entry; anything else is private.
func CannedACL(acl s3types.ObjectACL) types.ObjectCannedACL {
	switch acl {
	case s3types.ACLAuthenticatedRead:
		return types.ObjectCannedACLAuthenticatedRead
	case s3types.ACLAwsExecRead:
		return types.ObjectCannedACLAwsExecRead
	case s3types.ACLOwnerFullControl:
		return types.ObjectCannedACLBucketOwnerFullControl
	case s3types.ACLOwnerRead:
		return types.ObjectCannedACLBucketOwnerRead
	case s3types.ACLPublicRead:
		return types.ObjectCannedACLPublicRead
	case s3types.ACLPublicReadWrite:
		return types.ObjectCannedACLPublicReadWrite
	default:
		return types.ObjectCannedACLPrivate
	}
}
