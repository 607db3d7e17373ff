package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherLogger(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*DispatcherLogger)
		level string
		msg   string
		attrs map[string]any
	}{
		{
			name:  "debug",
			log:   func(l *DispatcherLogger) { l.Debug("Event queued", "command", "couple", "depth", 3) },
			level: "DEBUG",
			msg:   "Event queued",
			attrs: map[string]any{"command": "couple", "depth": float64(3)},
		},
		{
			name:  "info",
			log:   func(l *DispatcherLogger) { l.Info("Handler registered", "command", "reverse") },
			level: "INFO",
			msg:   "Handler registered",
			attrs: map[string]any{"command": "reverse"},
		},
		{
			name:  "error",
			log:   func(l *DispatcherLogger) { l.Error("Handler failed", "command", "uncouple", "error", "no such car") },
			level: "ERROR",
			msg:   "Handler failed",
			attrs: map[string]any{"command": "uncouple", "error": "no such car"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["msg"])
			assert.Equal(t, "dispatcher", entry["component"])
			for k, v := range tt.attrs {
				assert.Equal(t, v, entry[k], k)
			}
		})
	}
}

func TestDispatcherLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})))

	l.Debug("Event queued")
	l.Info("Handler registered")

	assert.Zero(t, buf.Len())
}

func TestDispatcherLogger_NilDiscards(t *testing.T) {
	l := NewDispatcherLogger(nil)
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Error("Handler failed", "command", "couple") })
}
