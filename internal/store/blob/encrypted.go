package blob

import (
	"context"
	"fmt"

	"packtrack/internal/encryption"
	"packtrack/internal/inventory"
)

// EncryptedStorage seals every value before handing it to the wrapped
// Storage. Keys are stored in the clear.
type EncryptedStorage struct {
	inner Storage
	enc   encryption.Encryptor
	dc    encryption.DecryptionContext
}

// NewEncryptedStorage wraps inner. dc must be unlocked from enc's key pair.
func NewEncryptedStorage(inner Storage, enc encryption.Encryptor, dc encryption.DecryptionContext) *EncryptedStorage {
	return &EncryptedStorage{inner: inner, enc: enc, dc: dc}
}

// Get returns the decrypted value. A value that cannot be decrypted is
// reported as inventory.ErrMalformedData.
func (s *EncryptedStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, found, err := s.inner.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}
	data, err := s.dc.Decrypt(sealed)
	if err != nil {
		return nil, false, fmt.Errorf("%w: decrypting %s: %v", inventory.ErrMalformedData, key, err)
	}
	return data, true, nil
}

func (s *EncryptedStorage) Set(ctx context.Context, key string, data []byte) error {
	sealed, err := s.enc.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *EncryptedStorage) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

var _ Storage = (*EncryptedStorage)(nil)
