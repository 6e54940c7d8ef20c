// Package deploy runs one incremental deploy of a local tree to a bucket.
//
// A run builds the local and remote manifests concurrently, loads the deploy
// manifest, plans with the reconcile package, then applies the plan: bounded
// parallel uploads, one batched delete, and finally an unconditional write of
// the updated deploy manifest. Per-file failures are recorded and the run goes
// on; the deploy manifest is written even when some uploads failed so the next
// run retries exactly those files.
package deploy
