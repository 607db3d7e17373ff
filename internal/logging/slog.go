package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName names the otelslog bridge logger.
const InstrumentationName = "formationd"

// stdout is swapped by tests.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger
	level  *slog.LevelVar

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	context atomic.Pointer[ContextProvider]
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{level: new(slog.LevelVar)}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Level returns the manager's level. Handlers built outside Setup can use it
// to follow SetLevel.
func (m *SlogManager) Level() slog.Leveler {
	return m.level
}

// SetLevel changes the level of every handler built by Setup.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

// SetContextProvider installs the attributes added to every record, such as
// the simulation tick. It may be called after Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	if p == nil {
		m.context.Store(nil)
		return
	}
	m.context.Store(&p)
}

func (m *SlogManager) contextAttrs() []slog.Attr {
	if p := m.context.Load(); p != nil {
		return (*p)()
	}
	return nil
}

// Setup initializes the logging system. Records go to file when one is
// given and to stdout otherwise; provider adds an OTel handler and extra
// handlers (such as GELF) receive every record as well.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	m.level.Set(parseLevel(level))
	m.logProvider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: m.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if provider != nil {
		otelHandler := otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(provider))
		handlers = append(handlers, otelHandler)
	}

	handlers = append(handlers, extra...)

	m.logger = slog.New(NewContextHandler(NewMultiHandler(handlers...), m.contextAttrs))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
