// Package s3deploy incrementally deploys a local directory tree to an S3 bucket.
//
// Only files whose content changed since the last deploy, or whose object was
// changed by someone else, are uploaded. Objects that no longer exist locally
// can optionally be deleted. No per-object HEAD requests are made: decisions
// come from comparing a fresh local scan, a fresh bucket listing and a deploy
// manifest stored in the bucket alongside the deployed files.
//
// Example usage:
//
//	client, err := s3deploy.New(s3deploy.WithRegion("eu-west-1"))
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.Deploy(ctx, "./public", "my-site", "",
//	    s3deploy.WithACL(s3types.ACLPublicRead),
//	    s3deploy.WithDelete(true),
//	    s3deploy.WithCreateManifest(true),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("uploaded %d, deleted %d\n", len(result.Uploaded), len(result.Deleted))
package s3deploy
