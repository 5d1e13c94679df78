package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for packtrack.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Store      StoreConfig      `toml:"store"`
	Legacy     LegacyConfig     `toml:"legacy"`
	Encryption EncryptionConfig `toml:"encryption"`
	Classifier ClassifierConfig `toml:"classifier"`
	Camera     CameraConfig     `toml:"camera"`
}

// StoreConfig selects the durable store behind the inventory.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string     `toml:"type"`               // "sqlite", "blob" or "memory"
	DataDir string     `toml:"data_dir,omitempty"` // only used for type=sqlite
	Blob    BlobConfig `toml:"blob"`               // only used for type=blob
}

// BlobConfig describes a key-value blob backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobConfig struct {
	Type      string `toml:"type"` // "memory", "filesystem" or "s3"
	Encrypted bool   `toml:"encrypted"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket       string `toml:"s3_bucket,omitempty"`
	S3Prefix       string `toml:"s3_prefix,omitempty"`
	S3Region       string `toml:"s3_region,omitempty"`
	S3Endpoint     string `toml:"s3_endpoint,omitempty"`      // custom endpoint, e.g. MinIO
	S3AccessKeyID  string `toml:"s3_access_key_id,omitempty"` // empty uses the default credential chain
	S3SecretKeyEnv string `toml:"s3_secret_key_env,omitempty"`
}

// LegacyConfig points at the blob storage written by older versions. When
// enabled and the store is sqlite, its collections are moved into the
// database on startup.
type LegacyConfig struct {
	Enabled bool       `toml:"enabled"`
	Blob    BlobConfig `toml:"blob"`
}

// EncryptionConfig holds paths to the age key pair used for encrypted blobs.
type EncryptionConfig struct {
	Type           string `toml:"type"`           // "age" (default) or "test"
	PassphraseEnv  string `toml:"passphrase_env"` // env var holding the key passphrase; prompts when unset
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ClassifierConfig configures the image classification and search service.
type ClassifierConfig struct {
	Type           string `toml:"type"` // "http" or "none"
	URL            string `toml:"url,omitempty"`
	Model          string `toml:"model,omitempty"`
	APIKeyEnv      string `toml:"api_key_env,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
}

// CameraConfig configures where captured frames are read from.
type CameraConfig struct {
	FrameDir string   `toml:"frame_dir"`
	Ignore   []string `toml:"ignore,omitempty"` // extra glob patterns matched against file names
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Legacy: LegacyConfig{
			Enabled: false,
			Blob: BlobConfig{
				Type:   "filesystem",
				FSRoot: filepath.Join(baseDir, "legacy"),
			},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PassphraseEnv:  "PACKTRACK_PASSPHRASE",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "packtrack.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "packtrack.key"),
		},
		Classifier: ClassifierConfig{
			Type:           "http",
			URL:            "http://localhost:11434/v1",
			Model:          "llava",
			APIKeyEnv:      "PACKTRACK_API_KEY",
			TimeoutSeconds: 120,
			MaxAttempts:    3,
		},
		Camera: CameraConfig{
			FrameDir: filepath.Join(baseDir, "frames"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. It refuses to overwrite an
// existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
