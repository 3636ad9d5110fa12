// Package config provides configuration management for packpatch.
package config

// Default configuration values for packpatch.
const (
	// DefaultProfile is the bundled patch set applied when none is named.
	DefaultProfile = "modern"

	// DefaultFormat is the report format.
	DefaultFormat = "pretty"

	// DefaultRetentionDays is the default number of days to keep journal entries.
	DefaultRetentionDays = 90

	// DefaultDebounce is how long watch mode waits for the pack to settle.
	DefaultDebounce = "500ms"

	// EnvPrefix prefixes every environment override, e.g. PACKPATCH_PROFILE.
	EnvPrefix = "PACKPATCH"
)
