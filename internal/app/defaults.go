package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - PACKTRACK_CONFIG_PATH: config file location (default: ~/.config/packtrack.toml)
//   - PACKTRACK_HOME: base directory for packtrack data (default: ~/.local/share/packtrack)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("PACKTRACK_CONFIG_PATH", ".config", "packtrack.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("PACKTRACK_HOME", ".local", "share", "packtrack")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of env, or rel joined onto the user's home
// directory when env is unset or empty.
func envOrHome(env string, rel ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for %s: %w", env, err)
	}
	return filepath.Join(append([]string{home}, rel...)...), nil
}
