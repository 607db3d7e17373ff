// Package monitor periodically reports the service status to a status
// file and to the telemetry sink.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/railsim/formation/internal/influx"
	"github.com/railsim/formation/internal/sim"
	gormstorage "github.com/railsim/formation/internal/storage/gorm"
	"github.com/railsim/formation/pkg/core"
)

// DefaultInterval is the report period used when none is given.
const DefaultInterval = time.Second

// StatusSource is the simulation read side the monitor samples.
type StatusSource interface {
	Status() sim.Status
	Formations() []core.FormationRecord
	Cars() []core.CarRecord
}

// PointWriter accepts telemetry points.
type PointWriter interface {
	WritePoint(*influxdb2_write.Point) error
}

// QueueReporter is implemented by backends with a pending write queue.
type QueueReporter interface {
	QueuedWrites() int
}

// FlushReporter is implemented by the SQL backends.
type FlushReporter interface {
	LastFlush() gormstorage.FlushStats
}

// ObserverCounter reports connected observers.
type ObserverCounter interface {
	Observers() int
}

// Dependencies holds all dependencies for the monitor service. Only Sim is
// required.
type Dependencies struct {
	Sim        StatusSource
	Storage    any
	Observers  ObserverCounter
	Telemetry  PointWriter
	StatusPath string
	Interval   time.Duration
	Logger     *slog.Logger
}

// StorageReport describes the backend's last write cycle.
type StorageReport struct {
	QueuedWrites      int       `json:"queuedWrites"`
	LastFlush         time.Time `json:"lastFlush,omitzero"`
	LastFlushMs       float64   `json:"lastFlushMs"`
	FormationsSaved   int       `json:"formationsSaved"`
	FormationsDeleted int       `json:"formationsDeleted"`
	CarsSaved         int       `json:"carsSaved"`
	CarsDeleted       int       `json:"carsDeleted"`
}

// Report is one status sample.
type Report struct {
	Time time.Time `json:"time"`
	sim.Status
	Observers int            `json:"observers"`
	Storage   *StorageReport `json:"storage,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	log       *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		deps: deps,
		log:  logger,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the current status.
func (s *Service) GetStatus() Report {
	r := Report{
		Time:   time.Now(),
		Status: s.deps.Sim.Status(),
	}
	if s.deps.Observers != nil {
		r.Observers = s.deps.Observers.Observers()
	}

	q, hasQueue := s.deps.Storage.(QueueReporter)
	f, hasFlush := s.deps.Storage.(FlushReporter)
	if hasQueue || hasFlush {
		r.Storage = &StorageReport{}
	}
	if hasQueue {
		r.Storage.QueuedWrites = q.QueuedWrites()
	}
	if hasFlush {
		stats := f.LastFlush()
		r.Storage.LastFlush = stats.Time
		r.Storage.LastFlushMs = float64(stats.Duration.Microseconds()) / 1000
		r.Storage.FormationsSaved = stats.FormationsSaved
		r.Storage.FormationsDeleted = stats.FormationsDeleted
		r.Storage.CarsSaved = stats.CarsSaved
		r.Storage.CarsDeleted = stats.CarsDeleted
	}
	return r
}

// Report samples the status once, rewrites the status file and sends
// telemetry points.
func (s *Service) Report() (Report, error) {
	r := s.GetStatus()

	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, r); err != nil {
			return r, err
		}
	}

	if s.deps.Telemetry != nil {
		if err := s.writeTelemetry(r); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (s *Service) writeTelemetry(r Report) error {
	queued := 0
	if r.Storage != nil {
		queued = r.Storage.QueuedWrites
	}
	point := influx.StatusPoint(r.Formations, r.Cars, r.Ticks, r.PendingSave, queued, r.Observers, r.LastTick, r.Time)
	if err := s.deps.Telemetry.WritePoint(point); err != nil {
		return fmt.Errorf("writing status point: %w", err)
	}

	// every car of a formation moves at the formation's speed
	speeds := make(map[core.FormationID]float32)
	for _, c := range s.deps.Sim.Cars() {
		if c.Formation != 0 {
			speeds[c.Formation] = c.Speed
		}
	}
	for _, rec := range s.deps.Sim.Formations() {
		if err := s.deps.Telemetry.WritePoint(influx.FormationPoint(rec, speeds[rec.ID], r.Time)); err != nil {
			return fmt.Errorf("writing formation %d point: %w", rec.ID, err)
		}
	}
	return nil
}

// writeStatusFile replaces path atomically with the indented report.
func writeStatusFile(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*")
	if err != nil {
		return fmt.Errorf("creating status file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing status file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.log.Debug("Starting status monitor", "interval", s.deps.Interval, "statusPath", s.deps.StatusPath)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := s.Report(); err != nil {
					s.log.Error("Status report failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
