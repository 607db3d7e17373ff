package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/railsim/formation/internal/api"
	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/internal/storage"
	"github.com/railsim/formation/internal/storage/memory"
	pgstorage "github.com/railsim/formation/internal/storage/postgres"
	redisstorage "github.com/railsim/formation/internal/storage/redis"
	sqlitestorage "github.com/railsim/formation/internal/storage/sqlite"
	wsstorage "github.com/railsim/formation/internal/storage/websocket"
)

// createStorageBackend builds the configured backend. It is not initialized.
func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger, sessionStart time.Time, flushInterval time.Duration) (storage.Backend, error) {
	logger = logger.With("component", "storage", "type", storageCfg.Type)

	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Dependencies{
			Config:        config.GetDBConfig(),
			Logger:        logger,
			FlushInterval: flushInterval,
		}), nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.DumpPath
		if dumpPath == "" {
			dumpPath = filepath.Join(".", fmt.Sprintf("%s_%s.db", ServiceName, sessionStart.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			Path:          storageCfg.SQLite.Path,
			DumpInterval:  storageCfg.SQLite.DumpInterval,
			DumpPath:      dumpPath,
			FlushInterval: flushInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend selected", "path", storageCfg.SQLite.Path, "dumpPath", dumpPath)
		return backend, nil

	case "redis":
		redisCfg := config.GetRedisConfig()
		logger.Info("Redis storage backend selected", "addr", redisCfg.Addr)
		return redisstorage.New(redisCfg, logger), nil

	case "websocket":
		wsURL := storageCfg.Websocket.URL
		if wsURL == "" {
			wsURL = httpToWS(viper.GetString("api.serverUrl")) + "/v1/formations/ws"
		}
		logger.Info("WebSocket storage backend selected", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: storageCfg.Websocket.Secret,
		}, logger), nil

	case "memory", "":
		logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// uploadExport sends the backend's export to the web frontend when the
// backend produced one and an API key is configured.
func uploadExport(backend storage.Backend, apiCfg config.APIConfig, logger *slog.Logger) {
	up, ok := backend.(storage.Uploadable)
	if !ok {
		return
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return
	}
	if apiCfg.APIKey == "" {
		logger.Info("Export written, upload skipped without API key", "path", path)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*api.DefaultTimeout)
	defer cancel()

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn("Web frontend is offline, upload skipped", "error", err, "path", path)
		return
	}
	meta := up.GetExportMetadata()
	if err := client.Upload(ctx, path, meta); err != nil {
		logger.Error("Failed to upload export", "error", err, "path", path)
		return
	}
	logger.Info("Uploaded export", "path", path, "name", meta.Name, "formations", meta.Formations, "cars", meta.Cars)
}
