// Package store selects and opens the durable inventory backend.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"packtrack/internal/config"
	"packtrack/internal/encryption"
	"packtrack/internal/inventory"
	"packtrack/internal/store/blob"
	"packtrack/internal/store/memory"
	"packtrack/internal/store/sqlite"
)

// NewStoreFromConfig creates an inventory.Store based on the store config
// type. enc and dc are only used by an encrypted blob store.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, enc encryption.Encryptor, dc encryption.DecryptionContext) (inventory.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		return sqlite.Open(filepath.Join(cfg.DataDir, sqlite.FileName))
	case "blob":
		storage, err := blob.NewStorageFromConfig(ctx, cfg.Blob, enc, dc)
		if err != nil {
			return nil, fmt.Errorf("creating blob storage: %w", err)
		}
		return blob.NewStore(storage), nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
