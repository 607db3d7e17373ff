// Package postgres implements the storage.Backend interface on PostgreSQL.
// It wraps the GORM backend and only owns connection setup.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/internal/database"
	gormstorage "github.com/railsim/formation/internal/storage/gorm"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the PostgreSQL storage backend.
// A nil DB is opened from Config on Init.
type Dependencies struct {
	DB            *gorm.DB
	Config        config.DBConfig
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// Backend implements storage.Backend using GORM/PostgreSQL with queue-based batch writes.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new PostgreSQL storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// Init connects if no DB was injected, then initializes the GORM backend.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:            b.deps.DB,
		Logger:        b.deps.Logger,
		FlushInterval: b.deps.FlushInterval,
	})
	return b.Backend.Init()
}

// Close closes the GORM backend; Close before Init is a no-op.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
