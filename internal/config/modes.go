package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// AssetMode tells the stager how to copy an asset.
type AssetMode string

const (
	AssetDir  AssetMode = "dir"  // copied recursively
	AssetFile AssetMode = "file" // copied byte-for-byte
)

var assetModes = map[string]AssetMode{
	"dir":       AssetDir,
	"directory": AssetDir,
	"tree":      AssetDir,
	"file":      AssetFile,
}

// ParseAssetMode normalizes a user supplied asset mode.
func ParseAssetMode(raw string) (AssetMode, error) {
	if m, ok := assetModes[normalizeKey(raw)]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unknown asset mode %q (want dir or file)", raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}

// NormalizeLogLevel maps raw input to a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	if l, ok := logLevels[normalizeKey(raw)]; ok {
		return l
	}
	return LogLevelInfo
}

// SlogLevel converts the level for slog handlers.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat maps raw input to a LogFormat, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	if normalizeKey(raw) == string(LogFormatJSON) {
		return LogFormatJSON
	}
	return LogFormatText
}

func normalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
