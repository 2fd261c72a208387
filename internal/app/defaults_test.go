package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("HRSYNC_CONFIG_PATH", "/etc/hrsync/hrsync.toml")
		t.Setenv("HRSYNC_HOME", "/var/lib/hrsync")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/etc/hrsync/hrsync.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/etc/hrsync/hrsync.toml")
		}
		if defaults["base_dir"] != "/var/lib/hrsync" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/var/lib/hrsync")
		}
		if defaults["log_dir"] != "/var/lib/hrsync/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/var/lib/hrsync/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("HRSYNC_CONFIG_PATH", "")
		t.Setenv("HRSYNC_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "hrsync.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "hrsync")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}

		wantLog := filepath.Join(wantBase, "log")
		if defaults["log_dir"] != wantLog {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], wantLog)
		}
	})
}
