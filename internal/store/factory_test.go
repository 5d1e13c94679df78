package store

import (
	"context"
	"path/filepath"
	"testing"

	"packtrack/internal/config"
	"packtrack/internal/encryption"
	"packtrack/internal/store/blob"
	"packtrack/internal/store/memory"
	"packtrack/internal/store/sqlite"
)

func TestNewStoreFromConfig(t *testing.T) {
	ctx := context.Background()
	enc := encryption.NewTestEncryptor()
	dc, _ := enc.Unlock("")

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		check   func(t *testing.T, v any)
		wantErr bool
	}{
		{
			name: "memory",
			cfg:  config.StoreConfig{Type: "memory"},
			check: func(t *testing.T, v any) {
				if _, ok := v.(*memory.Store); !ok {
					t.Errorf("got %T, want *memory.Store", v)
				}
			},
		},
		{
			name: "sqlite",
			cfg:  config.StoreConfig{Type: "sqlite", DataDir: filepath.Join(t.TempDir(), "db")},
			check: func(t *testing.T, v any) {
				s, ok := v.(*sqlite.Store)
				if !ok {
					t.Fatalf("got %T, want *sqlite.Store", v)
				}
				if filepath.Base(s.Path()) != sqlite.FileName {
					t.Errorf("Path() = %q, want file %q", s.Path(), sqlite.FileName)
				}
			},
		},
		{
			name: "encrypted filesystem blob",
			cfg: config.StoreConfig{Type: "blob", Blob: config.BlobConfig{
				Type: "filesystem", FSRoot: t.TempDir(), Encrypted: true,
			}},
			check: func(t *testing.T, v any) {
				if _, ok := v.(*blob.Store); !ok {
					t.Errorf("got %T, want *blob.Store", v)
				}
			},
		},
		{name: "sqlite without data dir", cfg: config.StoreConfig{Type: "sqlite"}, wantErr: true},
		{name: "filesystem blob without root", cfg: config.StoreConfig{Type: "blob", Blob: config.BlobConfig{Type: "filesystem"}}, wantErr: true},
		{name: "s3 blob without bucket", cfg: config.StoreConfig{Type: "blob", Blob: config.BlobConfig{Type: "s3"}}, wantErr: true},
		{name: "unknown blob type", cfg: config.StoreConfig{Type: "blob", Blob: config.BlobConfig{Type: "floppy"}}, wantErr: true},
		{name: "unknown store type", cfg: config.StoreConfig{Type: "indexeddb"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStoreFromConfig(ctx, tt.cfg, enc, dc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer s.Close()
			tt.check(t, s)
		})
	}
}

func TestNewStoreFromConfig_EncryptedBlobNeedsKeys(t *testing.T) {
	cfg := config.StoreConfig{Type: "blob", Blob: config.BlobConfig{Type: "memory", Encrypted: true}}

	if _, err := NewStoreFromConfig(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("NewStoreFromConfig() expected error without keys")
	}
}
