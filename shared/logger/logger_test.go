package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantErr   bool
		checkFunc func(t *testing.T, logger *Logger, output *bytes.Buffer)
	}{
		{
			name:   "json format with debug level",
			config: Config{Level: "debug", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("job pulled", slog.String("job_id", "job_1"))

				var logEntry map[string]interface{}
				require.NoError(t, json.Unmarshal(output.Bytes(), &logEntry))

				assert.Equal(t, "DEBUG", logEntry["level"])
				assert.Equal(t, "job pulled", logEntry["msg"])
				assert.Equal(t, "job_1", logEntry["job_id"])
				assert.Contains(t, logEntry, "time")
			},
		},
		{
			name:   "json format with warn level drops info",
			config: Config{Level: "warn", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("info message")
				logger.Warn("audit sink failed", slog.String("action", "bridge_job_pulled"))

				lines := strings.Split(strings.TrimSpace(output.String()), "\n")
				require.Len(t, lines, 1)

				var logEntry map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(lines[0]), &logEntry))
				assert.Equal(t, "WARN", logEntry["level"])
				assert.Equal(t, "bridge_job_pulled", logEntry["action"])
			},
		},
		{
			name:   "console format",
			config: Config{Level: "info", Format: "console", TimeFormat: time.RFC3339},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("console test")

				// tint prints short level names
				assert.Contains(t, output.String(), "INF")
				assert.Contains(t, output.String(), "console test")
			},
		},
		{
			name:   "source location enabled",
			config: Config{Level: "info", Format: "json", EnableSource: true},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("message with source")

				var logEntry map[string]interface{}
				require.NoError(t, json.Unmarshal(output.Bytes(), &logEntry))

				source, ok := logEntry["source"].(map[string]interface{})
				require.True(t, ok)
				assert.Contains(t, source, "file")
				assert.Contains(t, source, "line")
			},
		},
		{
			name:    "unsupported format",
			config:  Config{Level: "info", Format: "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			cfg := tt.config
			cfg.writer = output

			logger, err := New(&cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, logger)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, logger)
			if tt.checkFunc != nil {
				tt.checkFunc(t, logger, output)
			}
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file", slog.String("job_id", "job_2"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"job_id":"job_2"`)
}

func TestNew_FileOutputUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "bridge.log")

	_, err := New(&Config{Format: "json", Output: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.level))
		})
	}
}

func TestLogger_Component(t *testing.T) {
	output := &bytes.Buffer{}

	logger, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	logger.Component("store").Info("operation complete", slog.Int("jobs", 3))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &logEntry))

	assert.Equal(t, "store", logEntry["component"])
	assert.Equal(t, float64(3), logEntry["jobs"])
	assert.Equal(t, "operation complete", logEntry["msg"])
}
