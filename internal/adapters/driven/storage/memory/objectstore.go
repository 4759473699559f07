package memory

import (
	"context"
	"crypto/md5" //nolint:gosec // ETag fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
)

// Ensure ObjectStore implements the interface.
var _ driven.StorageClient = (*ObjectStore)(nil)

// storedObject is one uploaded blob.
type storedObject struct {
	Data        []byte
	ContentType string
}

// ObjectStore is an in-memory implementation of driven.StorageClient. ETags
// follow the S3 convention of an MD5 content fingerprint.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]storedObject
}

// NewObjectStore creates a new in-memory object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		objects: make(map[string]storedObject),
	}
}

// Upload stores the blob and returns its ETag.
func (s *ObjectStore) Upload(_ context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(bucket, key)] = storedObject{Data: stored, ContentType: contentType}

	sum := md5.Sum(stored) //nolint:gosec // see import note
	return hex.EncodeToString(sum[:]), nil
}

// Get retrieves an uploaded blob.
func (s *ObjectStore) Get(bucket, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return obj.Data, obj.ContentType, nil
}

// Len reports the number of stored objects.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func objectKey(bucket, key string) string {
	return fmt.Sprintf("%s/%s", bucket, key)
}
