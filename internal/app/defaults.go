package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - HRSYNC_CONFIG_PATH: config file location (default: ~/.config/hrsync.toml)
//   - HRSYNC_HOME: base directory for hrsync data (default: ~/.local/share/hrsync)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking HRSYNC_CONFIG_PATH first,
// then falling back to ~/.config/hrsync.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("HRSYNC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "hrsync.toml"), nil
}

// getBaseDir returns the data directory, checking HRSYNC_HOME first, then
// falling back to the XDG default ~/.local/share/hrsync.
func getBaseDir() (string, error) {
	if path := os.Getenv("HRSYNC_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "hrsync"), nil
}
