// Package gormstorage implements the storage.Backend interface using GORM.
// Writes are coalesced per record in internal queues and drained by a
// background writer goroutine in one transaction per cycle.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/railsim/formation/internal/database"
	"github.com/railsim/formation/internal/model"
	"github.com/railsim/formation/internal/model/convert"
	"github.com/railsim/formation/internal/queue"
	"github.com/railsim/formation/internal/storage"
	"github.com/railsim/formation/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// formationOp is a queued save or delete of one formation row.
type formationOp struct {
	id      uint64
	row     model.Formation
	deleted bool
}

// carOp is a queued save or delete of one car row.
type carOp struct {
	id      uint32
	row     model.Car
	deleted bool
}

// queues holds the write queues drained by the writer.
type queues struct {
	Formations *queue.Coalescing[core.FormationID, formationOp]
	Cars       *queue.Coalescing[core.CarID, carOp]
}

func newQueues() *queues {
	return &queues{
		Formations: queue.New[core.FormationID, formationOp](),
		Cars:       queue.New[core.CarID, carOp](),
	}
}

// FlushStats describes the last completed write cycle.
type FlushStats struct {
	Time              time.Time
	FormationsSaved   int
	FormationsDeleted int
	CarsSaved         int
	CarsDeleted       int
	Duration          time.Duration
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
// Without a DB it runs in queue-only mode: writes are queued but never drained.
type Backend struct {
	deps   Dependencies
	log    *slog.Logger
	queues *queues

	flushMu   sync.Mutex
	lastFlush FlushStats

	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Flusher = (*Backend)(nil)
)

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		deps:   deps,
		log:    logger,
		queues: newQueues(),
	}
}

// DB returns the underlying connection, or nil in queue-only mode.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB == nil {
		b.log.Warn("No database configured, writes stay queued")
		close(b.done)
		return nil
	}

	b.log.Info("Migrating schema")
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.log.Info("Database setup complete")

	go b.writer()
	return nil
}

// Close stops the writer goroutine and flushes what is still queued.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stopChan == nil {
			return
		}
		close(b.stopChan)
		<-b.done
		err = b.Flush()
	})
	return err
}

// SaveFormation converts a formation record and queues an upsert.
func (b *Backend) SaveFormation(rec *core.FormationRecord) error {
	if rec == nil {
		return errors.New("nil formation record")
	}
	b.queues.Formations.Push(rec.ID, formationOp{id: uint64(rec.ID), row: convert.CoreToFormation(*rec)})
	return nil
}

// DeleteFormation queues a delete, superseding any queued save.
func (b *Backend) DeleteFormation(id core.FormationID) error {
	b.queues.Formations.Push(id, formationOp{id: uint64(id), deleted: true})
	return nil
}

// SaveCar converts a car record and queues an upsert.
func (b *Backend) SaveCar(rec *core.CarRecord) error {
	if rec == nil {
		return errors.New("nil car record")
	}
	row, err := convert.CoreToCar(*rec)
	if err != nil {
		return fmt.Errorf("failed to convert car %d: %w", rec.ID, err)
	}
	b.queues.Cars.Push(rec.ID, carOp{id: uint32(rec.ID), row: row})
	return nil
}

// DeleteCar queues a delete, superseding any queued save.
func (b *Backend) DeleteCar(id core.CarID) error {
	b.queues.Cars.Push(id, carOp{id: uint32(id), deleted: true})
	return nil
}

// Load flushes pending writes and reads every persisted record.
func (b *Backend) Load() (*storage.Snapshot, error) {
	if b.deps.DB == nil {
		return nil, fmt.Errorf("load without database: %w", storage.ErrUnsupported)
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}

	var formations []model.Formation
	if err := b.deps.DB.Order("id").Find(&formations).Error; err != nil {
		return nil, fmt.Errorf("failed to load formations: %w", err)
	}
	var cars []model.Car
	if err := b.deps.DB.Order("id").Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("failed to load cars: %w", err)
	}

	snap := &storage.Snapshot{
		Formations: make([]core.FormationRecord, 0, len(formations)),
		Cars:       make([]core.CarRecord, 0, len(cars)),
	}
	for _, f := range formations {
		snap.Formations = append(snap.Formations, convert.FormationToCore(f))
	}
	for _, c := range cars {
		rec, err := convert.CarToCore(c)
		if err != nil {
			return nil, fmt.Errorf("failed to decode car %d: %w", c.ID, err)
		}
		snap.Cars = append(snap.Cars, rec)
	}
	return snap, nil
}

// LastFlush returns statistics of the last write cycle that wrote anything.
func (b *Backend) LastFlush() FlushStats {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	return b.lastFlush
}

// QueuedWrites returns how many records wait for the next write cycle.
func (b *Backend) QueuedWrites() int {
	return b.queues.Formations.Len() + b.queues.Cars.Len()
}

// Flush writes every queued operation in one transaction. On failure the
// operations are queued again unless a newer one arrived for the same key.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if b.queues.Formations.Empty() && b.queues.Cars.Empty() {
		return nil
	}

	start := time.Now()
	formations := b.queues.Formations.GetAndEmpty()
	cars := b.queues.Cars.GetAndEmpty()

	stats := FlushStats{Time: start}
	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		for _, op := range formations {
			if op.deleted {
				if err := tx.Delete(&model.Formation{}, op.id).Error; err != nil {
					return fmt.Errorf("deleting formation %d: %w", op.id, err)
				}
				stats.FormationsDeleted++
				continue
			}
			row := op.row
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("saving formation %d: %w", op.id, err)
			}
			stats.FormationsSaved++
		}
		for _, op := range cars {
			if op.deleted {
				if err := tx.Delete(&model.Car{}, op.id).Error; err != nil {
					return fmt.Errorf("deleting car %d: %w", op.id, err)
				}
				stats.CarsDeleted++
				continue
			}
			row := op.row
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("saving car %d: %w", op.id, err)
			}
			stats.CarsSaved++
		}
		stats.Duration = time.Since(start)
		return tx.Create(&model.FlushRun{
			Time:              start,
			FormationsSaved:   stats.FormationsSaved,
			FormationsDeleted: stats.FormationsDeleted,
			CarsSaved:         stats.CarsSaved,
			CarsDeleted:       stats.CarsDeleted,
			DurationMs:        float32(stats.Duration.Seconds() * 1000),
		}).Error
	})
	if err != nil {
		b.log.Error("Error writing queued records", "error", err)
		for _, op := range formations {
			requeue(b.queues.Formations, core.FormationID(op.id), op)
		}
		for _, op := range cars {
			requeue(b.queues.Cars, core.CarID(op.id), op)
		}
		return err
	}

	b.lastFlush = stats
	b.log.Debug("Flushed queued records",
		"formationsSaved", stats.FormationsSaved,
		"formationsDeleted", stats.FormationsDeleted,
		"carsSaved", stats.CarsSaved,
		"carsDeleted", stats.CarsDeleted,
		"duration", stats.Duration)
	return nil
}

func requeue[K comparable, V any](q *queue.Coalescing[K, V], k K, v V) {
	if _, ok := q.Get(k); ok {
		return
	}
	q.Push(k, v)
}

// writer periodically drains the queues into the DB.
func (b *Backend) writer() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
