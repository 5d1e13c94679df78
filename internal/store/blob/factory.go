package blob

import (
	"context"
	"fmt"

	"packtrack/internal/config"
	"packtrack/internal/encryption"
)

// NewStorageFromConfig creates a Storage based on the blob config type. When
// cfg.Encrypted is set, enc and dc must be provided and the storage is
// wrapped in an EncryptedStorage.
func NewStorageFromConfig(ctx context.Context, cfg config.BlobConfig, enc encryption.Encryptor, dc encryption.DecryptionContext) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch cfg.Type {
	case "memory":
		s = NewMemoryStorage()
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem blob storage requires fs_root to be set")
		}
		s, err = NewFileSystemStorage(cfg.FSRoot)
	case "s3":
		s, err = NewS3StorageFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown blob storage type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Encrypted {
		return s, nil
	}
	if enc == nil || dc == nil {
		return nil, fmt.Errorf("encrypted blob storage requires an unlocked key pair")
	}
	return NewEncryptedStorage(s, enc, dc), nil
}
