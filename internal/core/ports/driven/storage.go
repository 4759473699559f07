package driven

import "context"

// StorageClient is the object-store sink providers stream file content
// into. The S3 adapter is the production implementation; tests use the
// in-memory one.
type StorageClient interface {
	// Upload writes the object and returns the store's entity tag.
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}
