// Package sim hosts the formation core. A Simulation owns the formation
// registry and the live cars, serializes every mutation behind one mutex,
// advances movement on a tick and persists changed records to storage.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/railsim/formation/internal/cache"
	"github.com/railsim/formation/internal/formation"
	"github.com/railsim/formation/internal/storage"
	"github.com/railsim/formation/internal/vehicle"
	"github.com/railsim/formation/pkg/core"
	"github.com/railsim/formation/pkg/streaming"
)

var (
	ErrUnknownCar     = errors.New("unknown car")
	ErrCarExists      = errors.New("car already exists")
	ErrSameFormation  = errors.New("cars already share a formation")
	ErrNotInFormation = errors.New("car is not in a formation")
)

// Observer receives formation snapshots and synced car state. Calls arrive
// with the simulation lock held and must not block.
type Observer interface {
	formation.Broadcaster
	CarChanged(streaming.CarStatePayload)
}

// NopObserver discards every notification.
type NopObserver struct {
	formation.NopBroadcaster
}

func (NopObserver) CarChanged(streaming.CarStatePayload) {}

// Dependencies holds the collaborators of a Simulation.
type Dependencies struct {
	Storage  storage.Backend
	Observer Observer
	Logger   *slog.Logger
}

// Options tunes the run loop. Zero values select the defaults.
type Options struct {
	TickInterval  time.Duration
	FlushInterval time.Duration
}

const (
	DefaultTickInterval  = 50 * time.Millisecond
	DefaultFlushInterval = 10 * time.Second
)

// Simulation is the single authoritative owner of a formation registry.
type Simulation struct {
	mu       sync.Mutex
	manager  *formation.Manager
	cars     *cache.CarCache
	storage  storage.Backend
	observer Observer
	log      *slog.Logger
	opts     Options
	metrics  *metrics

	// persistence bookkeeping, guarded by mu
	dirty       map[core.FormationID]struct{}
	removed     map[core.FormationID]struct{}
	deletedCars map[core.CarID]struct{}

	ticks          atomic.Int64
	formationCount atomic.Int64
	lastTick       atomic.Int64 // nanoseconds
	lastFlush      atomic.Int64 // unix nanoseconds
}

// New creates a Simulation with an empty registry. A nil Storage keeps
// everything in memory only.
func New(deps Dependencies, opts Options) (*Simulation, error) {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	observer := deps.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	s := &Simulation{
		cars:        cache.NewCarCache(),
		storage:     deps.Storage,
		observer:    observer,
		log:         logger,
		opts:        opts,
		dirty:       make(map[core.FormationID]struct{}),
		removed:     make(map[core.FormationID]struct{}),
		deletedCars: make(map[core.CarID]struct{}),
	}
	s.manager = formation.NewManager(tracker{s}, logger)

	m, err := newMetrics(s)
	if err != nil {
		return nil, fmt.Errorf("creating simulation metrics: %w", err)
	}
	s.metrics = m
	return s, nil
}

// tracker records which formations need persisting and forwards every
// notification to the observer.
type tracker struct{ s *Simulation }

func (t tracker) FormationChanged(rec core.FormationRecord) {
	t.s.dirty[rec.ID] = struct{}{}
	delete(t.s.removed, rec.ID)
	t.s.observer.FormationChanged(rec)
}

func (t tracker) FormationRemoved(id core.FormationID) {
	delete(t.s.dirty, id)
	t.s.removed[id] = struct{}{}
	t.s.observer.FormationRemoved(id)
}

// Start restores persisted state. Backends that cannot load are skipped.
func (s *Simulation) Start() error {
	if s.storage == nil {
		return nil
	}
	snap, err := s.storage.Load()
	if errors.Is(err, storage.ErrUnsupported) {
		s.log.Info("Storage backend cannot load, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	return s.Restore(snap)
}

// Restore replaces the live state with snap. Cars whose formation is not in
// the snapshot get a single-car formation of their own.
func (s *Simulation) Restore(snap *storage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manager.Len() > 0 || s.cars.Len() > 0 {
		return errors.New("restore into a non-empty simulation")
	}

	for _, rec := range snap.Cars {
		s.cars.Add(vehicle.FromRecord(rec))
	}
	for _, rec := range snap.Formations {
		f, err := s.manager.Decode(rec, true, s.cars.Resolve)
		if err != nil {
			return fmt.Errorf("restoring formation %d: %w", rec.ID, err)
		}
		if len(f.Cars()) < f.Size() {
			s.log.Warn("Restored formation has empty slots", "formation", f.ID(), "size", f.Size(), "cars", len(f.Cars()))
		}
		s.observer.FormationChanged(f.Record(true))
	}
	for _, car := range s.cars.All() {
		if !car.Membership().InFormation() {
			s.log.Debug("Restored car without formation", "car", car.ID())
			s.newSingleFormation(car)
		}
	}

	s.formationCount.Store(int64(s.manager.Len()))
	s.log.Info("Restored state", "formations", s.manager.Len(), "cars", s.cars.Len())
	return nil
}

// Run ticks and flushes until ctx is done, then flushes a last time.
func (s *Simulation) Run(ctx context.Context) error {
	tick := time.NewTicker(s.opts.TickInterval)
	defer tick.Stop()
	flush := time.NewTicker(s.opts.FlushInterval)
	defer flush.Stop()

	s.log.Info("Simulation running", "tickInterval", s.opts.TickInterval, "flushInterval", s.opts.FlushInterval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Simulation stopping", "ticks", s.Ticks())
			return s.Flush()
		case <-tick.C:
			s.Tick(1)
		case <-flush.C:
			if err := s.Flush(); err != nil {
				s.log.Error("Flush failed", "error", err)
			}
		}
	}
}

// Ticks returns how many ticks have run.
func (s *Simulation) Ticks() int { return int(s.ticks.Load()) }

// FormationCount returns the number of live formations without locking.
func (s *Simulation) FormationCount() int { return int(s.formationCount.Load()) }

// LogAttrs returns the attributes a logging.ContextHandler adds to each record.
func (s *Simulation) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("tick", s.Ticks()),
		slog.Int("formations", s.FormationCount()),
	}
}

// Formations returns snapshots of every live formation ordered by id.
func (s *Simulation) Formations() []core.FormationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.manager.Formations()
	out := make([]core.FormationRecord, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Record(true))
	}
	return out
}

// Formation returns the snapshot of one formation.
func (s *Simulation) Formation(id core.FormationID) (core.FormationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.manager.Get(id)
	if !ok {
		return core.FormationRecord{}, false
	}
	return f.Record(true), true
}

// Cars returns the records of every live car ordered by id.
func (s *Simulation) Cars() []core.CarRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.cars.All()
	out := make([]core.CarRecord, 0, len(all))
	for _, c := range all {
		out = append(out, c.Record())
	}
	return out
}

// Status summarizes the simulation.
type Status struct {
	Formations  int           `json:"formations"`
	Cars        int           `json:"cars"`
	Ticks       int           `json:"ticks"`
	LastTick    time.Duration `json:"lastTickNs"`
	LastFlush   time.Time     `json:"lastFlush"`
	PendingSave int           `json:"pendingSave"`
}

// Status returns the current summary.
func (s *Simulation) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Formations:  s.manager.Len(),
		Cars:        s.cars.Len(),
		Ticks:       s.Ticks(),
		LastTick:    time.Duration(s.lastTick.Load()),
		PendingSave: len(s.dirty) + len(s.removed) + len(s.deletedCars),
	}
	if ns := s.lastFlush.Load(); ns > 0 {
		st.LastFlush = time.Unix(0, ns)
	}
	return st
}
