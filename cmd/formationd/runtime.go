package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/internal/logging"
	intOtel "github.com/railsim/formation/internal/otel"
)

// runtime holds the process-wide logging and telemetry setup shared by the
// subcommands.
type runtime struct {
	SessionStart time.Time
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	logFile    *os.File
	logPath    string
	gelfCloser io.Closer
}

// setupRuntime opens the session log file, starts the OTel provider and
// installs the slog handlers. toFile sends records to the log file instead
// of stdout.
func setupRuntime(toFile bool) (*runtime, error) {
	rt := &runtime{
		SessionStart: time.Now(),
		SlogManager:  logging.NewSlogManager(),
	}
	rt.SlogManager.Setup(nil, viper.GetString("logLevel"), nil)
	rt.Logger = rt.SlogManager.Logger()

	if toFile {
		logsDir := viper.GetString("logsDir")
		f, path, err := logging.OpenSessionLog(logsDir, ServiceName, rt.SessionStart)
		if err != nil {
			return nil, err
		}
		rt.logPath = path
		rt.logFile = f
	}

	otelCfg := config.GetOTelConfig()
	var logWriter io.Writer = os.Stdout
	if rt.logFile != nil {
		logWriter = rt.logFile
	}
	provider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logWriter,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
		Prometheus:   otelCfg.Prometheus,
	})
	if err != nil {
		rt.Logger.Error("Failed to initialize OTel provider", "error", err)
	} else {
		rt.OTelProvider = provider
	}

	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		h, closer, err := logging.NewGELFHandler(gl.Address, rt.SlogManager.Level())
		if err != nil {
			rt.Logger.Error("Failed to connect GELF sink", "address", gl.Address, "error", err)
		} else {
			extra = append(extra, h)
			rt.gelfCloser = closer
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if rt.OTelProvider != nil {
		otelLogProvider = rt.OTelProvider.LoggerProvider()
	}
	var file io.Writer
	if rt.logFile != nil {
		file = rt.logFile
	}
	rt.SlogManager.Setup(file, viper.GetString("logLevel"), otelLogProvider, extra...)
	rt.Logger = rt.SlogManager.Logger()
	if rt.logPath != "" {
		rt.Logger.Info("Logging to file", "path", rt.logPath)
		removed, err := logging.PruneSessionLogs(filepath.Dir(rt.logPath), ServiceName, viper.GetInt("logsRetain"))
		if err != nil {
			rt.Logger.Warn("Failed to prune old session logs", "error", err)
		}
		if len(removed) > 0 {
			rt.Logger.Info("Pruned old session logs", "count", len(removed))
		}
	}
	return rt, nil
}

// Close flushes and releases everything setupRuntime opened.
func (rt *runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := rt.SlogManager.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if rt.OTelProvider != nil {
		if err := rt.OTelProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.gelfCloser != nil {
		if err := rt.gelfCloser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.logFile != nil {
		if err := rt.logFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
