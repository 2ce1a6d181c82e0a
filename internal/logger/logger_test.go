package logger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	orig := os.Stdout
	defer func() { os.Stdout = orig }()

	r, w, err := os.Pipe()
	require.NoError(t, err, "failed to create stdout pipe")

	os.Stdout = w

	fn()

	err = w.Close()
	require.NoError(t, err, "failed to close stdout pipe")

	out, err := io.ReadAll(r)
	require.NoError(t, err, "failed to read stdout pipe")

	return string(out)
}

func TestLogger_parseLevelString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"Debug level", "DEBUG", slog.LevelDebug},
		{"Debug level lowercase", "debug", slog.LevelDebug},
		{"Info level", "info", slog.LevelInfo},
		{"Warn level", "warn", slog.LevelWarn},
		{"Error level", "error", slog.LevelError},
		{"Unknown level falls back to info", "whatever", slog.LevelInfo},
		{"Empty level falls back to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLevelString(tt.input)

			require.Equal(t, tt.expected, got, "parseLevelString(%q) should return %v", tt.input, tt.expected)
		})
	}
}

func TestLogger_New(t *testing.T) {
	t.Run("dev environment writes text", func(t *testing.T) {
		stdout := captureStdout(t, func() {
			logger, err := New(EnvDev, LevelInfo)
			require.NoError(t, err)

			logger.Info("test message", "key", "value")
		})

		require.Contains(t, stdout, "test message")
		require.Contains(t, stdout, "key=value")
		require.Contains(t, stdout, "INFO")
	})

	t.Run("prod environment writes json", func(t *testing.T) {
		stdout := captureStdout(t, func() {
			logger, err := New(EnvProduction, LevelInfo)
			require.NoError(t, err)

			logger.Info("test message", "key", "value")
		})

		var entry map[string]any
		err := json.Unmarshal([]byte(stdout), &entry)
		require.NoError(t, err, "JSON log should be valid")
		require.Equal(t, "test message", entry["msg"], "JSON log should contain the message")
		require.Equal(t, "INFO", entry["level"], "JSON log should contain the level")
		require.Equal(t, "value", entry["key"], "JSON log should contain key-value pairs")
	})

	t.Run("unknown environment rejected", func(t *testing.T) {
		_, err := New("staging", LevelInfo)

		require.Error(t, err)
	})
}

func TestLogger_NewNoOpLogger(t *testing.T) {
	stdout := captureStdout(t, func() {
		logger := NewNoOpLogger()
		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message")
	})

	require.Empty(t, stdout, "NoOp logger should not write anything")
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func(Logger)
		isLogged bool
	}{
		{"Debug logger logs debug", LevelDebug, func(l Logger) { l.Debug("test") }, true},
		{"Debug logger logs error", LevelDebug, func(l Logger) { l.Error("test") }, true},

		{"Info logger skips debug", LevelInfo, func(l Logger) { l.Debug("test") }, false},
		{"Info logger logs info", LevelInfo, func(l Logger) { l.Info("test") }, true},

		{"Warn logger skips info", LevelWarn, func(l Logger) { l.Info("test") }, false},
		{"Warn logger logs warn", LevelWarn, func(l Logger) { l.Warn("test") }, true},

		{"Error logger skips warn", LevelError, func(l Logger) { l.Warn("test") }, false},
		{"Error logger logs error", LevelError, func(l Logger) { l.Error("test") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout := captureStdout(t, func() {
				logger, err := New(EnvDev, tt.level)
				require.NoError(t, err, "New should not return an error")

				tt.logFn(logger)
			})

			require.Equal(t, tt.isLogged, len(stdout) > 0, "Logger level %s: expected isLogged=%v", tt.level, tt.isLogged)
		})
	}
}

func TestLogger_With(t *testing.T) {
	stdout := captureStdout(t, func() {
		logger, err := New(EnvDev, LevelInfo)
		require.NoError(t, err)

		logger.With("component", "test", "version", "1.0").Info("test message")
	})

	require.Contains(t, stdout, "component=test")
	require.Contains(t, stdout, "version=1.0")
	require.Contains(t, stdout, "test message")
}
