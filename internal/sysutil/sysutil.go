// Package sysutil holds process-level helpers: global log level, logger
// sinks, and small env parsing utilities used by the command entrypoint.
package sysutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/tbourn/go-sufi-platform/internal/config"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// ConfigureLogger installs the global zerolog logger: JSON (or console when
// pretty) on stdout, plus a size-rotated JSON file when a path is set. The
// returned closer flushes the file sink and is safe to call when no file is
// configured.
func ConfigureLogger(level string, pretty bool, file config.LogFileConfig) (io.Closer, error) {
	SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var stdout io.Writer = os.Stdout
	if pretty {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{stdout}
	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(file.Path); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    nz(file.MaxSizeMB, 100), // megabytes
			MaxBackups: nz(file.MaxBackups, 3),
			MaxAge:     nz(file.MaxAgeDays, 28), // days
			Compress:   true,
		}
		writers = append(writers, lj)
		closer = lj
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func nz(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// IsTruthy reports whether an environment variable string should be considered true.
// Accepted values (case-insensitive): "1", "true", "yes", "y", "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first non-empty string from a variadic list.
// If all values are empty, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
