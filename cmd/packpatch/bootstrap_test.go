package main

import (
	"testing"

	"github.com/jamesainslie/packpatch/pkg/packpatch/config"
	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
)

func TestParseRotationConfig(t *testing.T) {
	defaultSize := logging.DefaultRotationConfig().MaxSize

	tests := []struct {
		name     string
		input    config.RotationConfig
		expected logging.RotationConfig
	}{
		{
			name:     "decimal megabytes",
			input:    config.RotationConfig{MaxSize: "10MB", MaxAge: 30, MaxBackups: 5, Daily: true},
			expected: logging.RotationConfig{MaxSize: 10 * 1000 * 1000, MaxAge: 30, MaxBackups: 5, Daily: true},
		},
		{
			name:     "binary gigabytes",
			input:    config.RotationConfig{MaxSize: "1GiB", MaxAge: 7, MaxBackups: 3},
			expected: logging.RotationConfig{MaxSize: 1024 * 1024 * 1024, MaxAge: 7, MaxBackups: 3},
		},
		{
			name:     "empty max_size uses default",
			input:    config.RotationConfig{MaxAge: 14, MaxBackups: 2, Daily: true},
			expected: logging.RotationConfig{MaxSize: defaultSize, MaxAge: 14, MaxBackups: 2, Daily: true},
		},
		{
			name:     "invalid max_size uses default",
			input:    config.RotationConfig{MaxSize: "invalid", MaxAge: 21, MaxBackups: 4},
			expected: logging.RotationConfig{MaxSize: defaultSize, MaxAge: 21, MaxBackups: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRotationConfig(tt.input)
			if got != tt.expected {
				t.Errorf("parseRotationConfig() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestConsoleLevel(t *testing.T) {
	tests := []struct {
		name           string
		configured     string
		verbose, quiet bool
		want           string
	}{
		{"configured", "warn", false, false, "warn"},
		{"disabled", "", false, false, ""},
		{"verbose", "warn", true, false, "debug"},
		{"quiet", "warn", false, true, "error"},
		{"verbose wins", "", true, true, "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := consoleLevel(tt.configured, tt.verbose, tt.quiet); got != tt.want {
				t.Errorf("consoleLevel() = %q, want %q", got, tt.want)
			}
		})
	}
}
