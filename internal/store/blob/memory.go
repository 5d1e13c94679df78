package blob

import (
	"context"
	"fmt"
	"sync"

	"packtrack/internal/inventory"
)

// MemoryStorage is an in-memory Storage. Values are copied in and out.
// This implementation is safe for concurrent use.
type MemoryStorage struct {
	mu          sync.RWMutex
	data        map[string][]byte
	unavailable bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// SetUnavailable makes every operation fail until called again with false.
func (m *MemoryStorage) SetUnavailable(unavailable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = unavailable
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return nil, false, fmt.Errorf("memory blob storage offline: %w", inventory.ErrStorageUnavailable)
	}
	data, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, data...), true, nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return fmt.Errorf("memory blob storage offline: %w", inventory.ErrStorageUnavailable)
	}
	m.data[key] = append([]byte{}, data...)
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return fmt.Errorf("memory blob storage offline: %w", inventory.ErrStorageUnavailable)
	}
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys. Intended for tests.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

var _ Storage = (*MemoryStorage)(nil)
