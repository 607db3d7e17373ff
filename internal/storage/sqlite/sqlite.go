// Package sqlitestorage implements the storage.Backend interface on SQLite.
// It wraps the GORM backend via composition. The only SQLite-specific
// concerns are creating the database, optionally in memory, and the
// periodic disk dump of an in-memory database via VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/railsim/formation/internal/database"
	gormstorage "github.com/railsim/formation/internal/storage/gorm"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path          string // empty keeps the database in memory
	DumpInterval  time.Duration
	DumpPath      string // Path for periodic VACUUM INTO dumps
	FlushInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	dumps    chan struct{}
	dumpMu   sync.Mutex
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := database.GetSqliteDB(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:            db,
		Logger:        logger,
		FlushInterval: cfg.FlushInterval,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
		dumps:    make(chan struct{}, 1),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumping() && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a final dump.
func (b *Backend) Close() error {
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.dumping() {
		return b.Dump()
	}
	return nil
}

// GetExportedFilePath returns the dump file path, empty if dumps are off.
func (b *Backend) GetExportedFilePath() string {
	if !b.dumping() {
		return ""
	}
	return b.cfg.DumpPath
}

// Dump writes a point-in-time copy of the database to DumpPath.
func (b *Backend) Dump() error {
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()

	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		b.log.Error("Error dumping to disk", "path", b.cfg.DumpPath, "error", err)
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	select {
	case b.dumps <- struct{}{}:
	default:
	}
	return nil
}

func (b *Backend) dumping() bool {
	return b.cfg.Path == "" && b.cfg.DumpPath != ""
}

// dumpLoop periodically dumps the in-memory SQLite database to disk.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				continue
			}
			_ = b.Dump()
		}
	}
}
