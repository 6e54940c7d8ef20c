// Package reconcile decides which files to upload and which objects to delete.
//
// Plan compares three manifests keyed by the same relative paths: the local
// scan L, the bucket listing R and the deploy manifest D persisted by earlier
// runs. D records, for every file last uploaded, the local checksum and the
// remote ETag observed at that moment. A file is unchanged only when both still
// match: the checksum says the content is the same, the ETag says nobody else
// overwrote the object since.
//
// Plan performs no I/O and does not modify its inputs.
package reconcile
