package sim

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/railsim/formation/internal/storage"
	"github.com/railsim/formation/pkg/core"
)

// Flush writes changed formations, removals and every live car to storage.
// Records that fail to save are kept dirty for the next flush.
func (s *Simulation) Flush() error {
	if s.storage == nil {
		return nil
	}

	s.mu.Lock()
	removed := slices.Sorted(maps.Keys(s.removed))
	deletedCars := slices.Sorted(maps.Keys(s.deletedCars))
	saves := make([]core.FormationRecord, 0, len(s.dirty))
	for _, id := range slices.Sorted(maps.Keys(s.dirty)) {
		if f, ok := s.manager.Get(id); ok {
			saves = append(saves, f.Record(true))
		}
	}
	all := s.cars.All()
	cars := make([]core.CarRecord, 0, len(all))
	for _, c := range all {
		cars = append(cars, c.Record())
	}
	clear(s.removed)
	clear(s.deletedCars)
	clear(s.dirty)
	s.mu.Unlock()

	start := time.Now()
	var errs []error
	var failedSaves []core.FormationID
	var failedRemoved []core.FormationID
	var failedCars []core.CarID

	for _, id := range removed {
		if err := s.storage.DeleteFormation(id); err != nil {
			errs = append(errs, fmt.Errorf("delete formation %d: %w", id, err))
			failedRemoved = append(failedRemoved, id)
		}
	}
	for i := range saves {
		if err := s.storage.SaveFormation(&saves[i]); err != nil {
			errs = append(errs, fmt.Errorf("save formation %d: %w", saves[i].ID, err))
			failedSaves = append(failedSaves, saves[i].ID)
		}
	}
	for _, id := range deletedCars {
		if err := s.storage.DeleteCar(id); err != nil {
			errs = append(errs, fmt.Errorf("delete car %d: %w", id, err))
			failedCars = append(failedCars, id)
		}
	}
	for i := range cars {
		if err := s.storage.SaveCar(&cars[i]); err != nil {
			errs = append(errs, fmt.Errorf("save car %d: %w", cars[i].ID, err))
		}
	}
	if fl, ok := s.storage.(storage.Flusher); ok {
		if err := fl.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush storage: %w", err))
		}
	}

	if len(failedSaves)+len(failedRemoved)+len(failedCars) > 0 {
		s.mu.Lock()
		for _, id := range failedRemoved {
			if _, live := s.manager.Get(id); !live {
				s.removed[id] = struct{}{}
			}
		}
		for _, id := range failedSaves {
			if _, gone := s.removed[id]; !gone {
				s.dirty[id] = struct{}{}
			}
		}
		for _, id := range failedCars {
			if _, live := s.cars.Get(id); !live {
				s.deletedCars[id] = struct{}{}
			}
		}
		s.mu.Unlock()
	}

	err := errors.Join(errs...)
	s.metrics.recordFlush(time.Since(start), err)
	if err != nil {
		return err
	}
	s.lastFlush.Store(time.Now().UnixNano())
	s.log.Debug("Flushed state",
		"formationsSaved", len(saves),
		"formationsDeleted", len(removed),
		"cars", len(cars),
		"carsDeleted", len(deletedCars),
		"duration", time.Since(start))
	return nil
}
