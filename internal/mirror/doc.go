// Package mirror uploads verified artifacts to object storage.
//
// Buckets are addressed by gocloud URL (s3://, gs://, file://), so the
// mirror target can be any store the blob drivers support. Uploads are
// idempotent: an object that already exists with the expected size is
// left alone.
package mirror
