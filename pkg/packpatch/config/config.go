package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Console    string            `mapstructure:"console"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// CacheConfig configures the content-hash cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// JournalConfig configures the run history.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Config represents the application configuration.
type Config struct {
	Profile              string        `mapstructure:"profile"`
	PatchSet             string        `mapstructure:"patchset"`
	AllowVersionMismatch bool          `mapstructure:"allow_version_mismatch"`
	Format               string        `mapstructure:"format"`
	Cache                CacheConfig   `mapstructure:"cache"`
	Journal              JournalConfig `mapstructure:"journal"`
	Watch                WatchConfig   `mapstructure:"watch"`
	Logging              LoggingConfig `mapstructure:"logging"`
}

// New returns a viper instance with defaults, environment bindings and,
// when present, the config file applied. An explicit file must exist;
// otherwise a missing config file is not an error.
//
// Config file locations (in order of precedence):
//   - file, when not empty
//   - $XDG_CONFIG_HOME/packpatch/config.yaml
//   - $HOME/.config/packpatch/config.yaml
//
// Environment variables are prefixed with PACKPATCH_ (e.g., PACKPATCH_PROFILE,
// PACKPATCH_CACHE_ENABLED).
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if file != "" {
		path, err := ExpandPath(file)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", DefaultProfile)
	v.SetDefault("patchset", "")
	v.SetDefault("allow_version_mismatch", false)
	v.SetDefault("format", DefaultFormat)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // Empty means $XDG_CACHE_HOME/packpatch/hashes

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "") // Empty means $XDG_DATA_HOME/packpatch/journal
	v.SetDefault("journal.retention_days", DefaultRetentionDays)

	v.SetDefault("watch.debounce", DefaultDebounce)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means $XDG_STATE_HOME/packpatch/packpatch.log
	v.SetDefault("logging.console", "warn")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", false)
	v.SetDefault("logging.components", map[string]string{})
}

// Decode unmarshals v into a Config and expands ~ in path settings.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.PatchSet, &cfg.Cache.Path, &cfg.Journal.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// Load reads configuration from file (or the default locations) and the
// environment.
func Load(file string) (*Config, error) {
	v, err := New(file)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "packpatch"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "packpatch"), nil
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a commented default config file and returns its path.
// An existing file is left alone and created is false.
func WriteDefault() (path string, created bool, err error) {
	path, err = ConfigFile()
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigFile()), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write default config: %w", err)
	}
	return path, true, nil
}

func defaultConfigFile() string {
	return fmt.Sprintf(`# packpatch configuration

# Bundled patch set to apply: legacy (pack_format 1) or modern (pack_format 34)
profile: %s

# Directory of a custom patch set (patch.yaml plus payloads). Overrides profile.
patchset: ""

# Apply even when pack.mcmeta declares a different pack_format
allow_version_mismatch: false

# Report format: pretty, plain, json, yaml
format: %s

# Content-hash cache used to skip re-reading unchanged files
cache:
  enabled: true
  # Empty means $XDG_CACHE_HOME/packpatch/hashes
  path: ""

# Run history
journal:
  enabled: true
  # Empty means $XDG_DATA_HOME/packpatch/journal
  path: ""
  retention_days: %d

# Watch mode
watch:
  debounce: %s

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/packpatch/packpatch.log)
  path: ""
  # Console level on stderr; empty disables console logging
  console: warn
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: false
  # Per-component log levels
  components:
    engine: info
    executor: info
    watcher: warn
`, DefaultProfile, DefaultFormat, DefaultRetentionDays, DefaultDebounce)
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/packpatch/ for the run journal.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "packpatch")
}

// StateDir returns $XDG_STATE_HOME/packpatch/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "packpatch")
}

// CacheDir returns $XDG_CACHE_HOME/packpatch/ for the hash cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "packpatch")
}
