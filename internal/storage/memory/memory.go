// internal/storage/memory/memory.go
package memory

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/internal/storage"
	"github.com/railsim/formation/pkg/core"
)

// Backend stores formations and cars in memory and exports them to JSON
// on Close when an output directory is configured.
type Backend struct {
	cfg       config.MemoryConfig
	startTime time.Time
	tag       string

	formations map[core.FormationID]core.FormationRecord
	cars       map[core.CarID]core.CarRecord

	lastExportPath string
	mu             sync.RWMutex
}

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Uploadable = (*Backend)(nil)
)

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:        cfg,
		startTime:  time.Now(),
		formations: make(map[core.FormationID]core.FormationRecord),
		cars:       make(map[core.CarID]core.CarRecord),
	}
}

// SetTag labels the export for upload.
func (b *Backend) SetTag(tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tag = tag
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the stored state when an output directory is set
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// SaveFormation stores a copy of the formation record
func (b *Backend) SaveFormation(rec *core.FormationRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *rec
	cp.Entries = slices.Clone(rec.Entries)
	b.formations[rec.ID] = cp
	return nil
}

// DeleteFormation forgets a formation; unknown ids are ignored
func (b *Backend) DeleteFormation(id core.FormationID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.formations, id)
	return nil
}

// SaveCar stores a copy of the car record
func (b *Backend) SaveCar(rec *core.CarRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *rec
	cp.States = maps.Clone(rec.States)
	b.cars[rec.ID] = cp
	return nil
}

// DeleteCar forgets a car; unknown ids are ignored
func (b *Backend) DeleteCar(id core.CarID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.cars, id)
	return nil
}

// Load returns every stored record ordered by id
func (b *Backend) Load() (*storage.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := b.snapshot()
	return &snap, nil
}

// GetFormation looks up a stored formation
func (b *Backend) GetFormation(id core.FormationID) (core.FormationRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.formations[id]
	return rec, ok
}

// GetCar looks up a stored car
func (b *Backend) GetCar(id core.CarID) (core.CarRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.cars[id]
	return rec, ok
}

// GetExportedFilePath returns the path of the last export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export
func (b *Backend) GetExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return storage.UploadMetadata{
		Name:       exportName(b.startTime),
		Formations: len(b.formations),
		Cars:       len(b.cars),
		Tag:        b.tag,
	}
}

// snapshot must be called with b.mu held.
func (b *Backend) snapshot() storage.Snapshot {
	snap := storage.Snapshot{
		Formations: make([]core.FormationRecord, 0, len(b.formations)),
		Cars:       make([]core.CarRecord, 0, len(b.cars)),
	}
	for _, id := range slices.Sorted(maps.Keys(b.formations)) {
		snap.Formations = append(snap.Formations, b.formations[id])
	}
	for _, id := range slices.Sorted(maps.Keys(b.cars)) {
		snap.Cars = append(snap.Cars, b.cars[id])
	}
	return snap
}
