package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

// Store is an in-memory implementation of blobstore.Store
// Suitable for testing and development
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	maxBytes int64 // 0 = unbounded
	used     int64
}

// New creates a new unbounded in-memory artifact store
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// NewBounded creates an in-memory store with a byte budget. Writes that
// would exceed the budget fail with models.ErrQuotaExceeded, mirroring a
// full disk in tests.
func NewBounded(maxBytes int64) *Store {
	return &Store{data: make(map[string][]byte), maxBytes: maxBytes}
}

// Put stores an artifact blob
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := int64(len(value)) - int64(len(s.data[key]))
	if s.maxBytes > 0 && s.used+delta > s.maxBytes {
		return fmt.Errorf("%w: %d bytes over budget", models.ErrQuotaExceeded, s.used+delta-s.maxBytes)
	}

	s.data[key] = append([]byte(nil), value...)
	s.used += delta
	return nil
}

// Get retrieves an artifact by key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), val...), nil
}

// Delete removes an artifact
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if val, ok := s.data[key]; ok {
		s.used -= int64(len(val))
		delete(s.data, key)
	}
	return nil
}

// Close releases any resources
func (s *Store) Close() error {
	return nil
}
