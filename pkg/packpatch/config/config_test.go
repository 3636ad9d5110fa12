package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix+"_") {
			t.Setenv(strings.SplitN(kv, "=", 2)[0], "")
		}
	}
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Profile != DefaultProfile {
		t.Errorf("Profile = %q, want %q", cfg.Profile, DefaultProfile)
	}
	if cfg.Format != DefaultFormat {
		t.Errorf("Format = %q, want %q", cfg.Format, DefaultFormat)
	}
	if cfg.AllowVersionMismatch {
		t.Error("AllowVersionMismatch = true, want false")
	}
	if !cfg.Cache.Enabled || !cfg.Journal.Enabled {
		t.Errorf("Cache.Enabled = %v, Journal.Enabled = %v, want both true", cfg.Cache.Enabled, cfg.Journal.Enabled)
	}
	if cfg.Journal.RetentionDays != DefaultRetentionDays {
		t.Errorf("Journal.RetentionDays = %d, want %d", cfg.Journal.RetentionDays, DefaultRetentionDays)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Watch.Debounce = %v, want 500ms", cfg.Watch.Debounce)
	}
	if cfg.Logging.Console != "warn" {
		t.Errorf("Logging.Console = %q, want warn", cfg.Logging.Console)
	}
}

func TestLoad_FromFile(t *testing.T) {
	home := isolate(t)
	configDir := filepath.Join(home, ".config", "packpatch")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	content := `
profile: legacy
allow_version_mismatch: true
format: json
journal:
  path: ~/history
  retention_days: 7
watch:
  debounce: 2s
logging:
  level: debug
  components:
    engine: warn
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Profile != "legacy" {
		t.Errorf("Profile = %q, want legacy", cfg.Profile)
	}
	if !cfg.AllowVersionMismatch {
		t.Error("AllowVersionMismatch = false, want true")
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if want := filepath.Join(home, "history"); cfg.Journal.Path != want {
		t.Errorf("Journal.Path = %q, want %q", cfg.Journal.Path, want)
	}
	if cfg.Journal.RetentionDays != 7 {
		t.Errorf("Journal.RetentionDays = %d, want 7", cfg.Journal.RetentionDays)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("Watch.Debounce = %v, want 2s", cfg.Watch.Debounce)
	}
	if cfg.Logging.Components["engine"] != "warn" {
		t.Errorf("Logging.Components[engine] = %q, want warn", cfg.Logging.Components["engine"])
	}
	if !cfg.Cache.Enabled {
		t.Error("unset keys keep their defaults")
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("profile: legacy\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != "legacy" {
		t.Errorf("Profile = %q, want legacy", cfg.Profile)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing explicit file should fail")
	}
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("PACKPATCH_PROFILE", "legacy")
	t.Setenv("PACKPATCH_CACHE_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != "legacy" {
		t.Errorf("Profile = %q, want legacy", cfg.Profile)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false from environment")
	}
}

func TestWriteDefault(t *testing.T) {
	isolate(t)
	xdgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgHome)

	path, created, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if !created {
		t.Error("created = false on first call")
	}
	if want := filepath.Join(xdgHome, "packpatch", "config.yaml"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("default file does not load: %v", err)
	}
	if cfg.Profile != DefaultProfile {
		t.Errorf("Profile = %q, want %q", cfg.Profile, DefaultProfile)
	}

	_, created, err = WriteDefault()
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("created = true when the file already exists")
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"~/packs", filepath.Join(home, "packs")},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
