package blob

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryObject struct {
	contentType string
	data        []byte
}

// MemoryStore keeps objects in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// PresignUpload returns a memory:// reference to key. Clients of the
// in-process store write with Put directly.
func (s *MemoryStore) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key cannot be empty")
	}
	return "memory://" + key, nil
}

// Get returns a copy of the stored object.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

// Put stores a copy of data and returns key as its reference.
func (s *MemoryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = memoryObject{
		contentType: contentType,
		data:        append([]byte(nil), data...),
	}
	return key, nil
}
