package main

import (
	"github.com/jamesainslie/packpatch/pkg/packpatch/config"
	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
)

// loggingConfig converts the logging section of the config file into
// logging.Config, letting --verbose and --quiet override the console level.
func loggingConfig(c config.LoggingConfig) logging.Config {
	return logging.Config{
		Level:        c.Level,
		Path:         c.Path,
		Rotation:     parseRotationConfig(c.Rotation),
		Components:   c.Components,
		ConsoleLevel: consoleLevel(c.Console, verboseFlag, quietFlag),
	}
}

// consoleLevel picks the stderr log level. Verbose wins over quiet.
func consoleLevel(configured string, verbose, quiet bool) string {
	switch {
	case verbose:
		return "debug"
	case quiet:
		return "error"
	default:
		return configured
	}
}

// parseRotationConfig converts the config file rotation settings, falling
// back to the default size when max_size is empty or invalid.
func parseRotationConfig(c config.RotationConfig) logging.RotationConfig {
	size, err := logging.ParseSize(c.MaxSize)
	if err != nil || size <= 0 {
		size = logging.DefaultRotationConfig().MaxSize
	}
	return logging.RotationConfig{
		MaxSize:    size,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Daily:      c.Daily,
	}
}
