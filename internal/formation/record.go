package formation

import (
	"errors"
	"fmt"

	"github.com/railsim/formation/pkg/core"
)

var (
	// ErrInvalidRecord is wrapped by every decoding error caused by malformed data.
	ErrInvalidRecord = errors.New("invalid formation record")
	// ErrFormationExists is returned when decoding a record whose id is
	// live or retired.
	ErrFormationExists = errors.New("formation already registered")
)

// ResolveFunc looks up a live car by its persisted reference.
type ResolveFunc func(id core.CarID) (core.Car, bool)

// Record returns the persisted form of f. Entries are included only when
// withEntries is set; empty slots are omitted.
func (f *Formation) Record(withEntries bool) core.FormationRecord {
	rec := core.FormationRecord{
		ID:        f.id,
		Size:      len(f.entries),
		Direction: f.direction,
	}
	if !withEntries {
		return rec
	}
	rec.Entries = make([]core.EntryRecord, 0, len(f.entries))
	for _, e := range f.entries {
		if e == nil {
			continue
		}
		rec.Entries = append(rec.Entries, core.EntryRecord{
			Car:     e.Car.ID(),
			EntryID: e.EntryID,
			Dir:     e.Dir,
		})
	}
	return rec
}

// Validate checks rec for structural consistency without registering anything.
func Validate(rec core.FormationRecord) error {
	if rec.ID == 0 {
		return fmt.Errorf("%w: id must be non-zero", ErrInvalidRecord)
	}
	if rec.Size < 0 {
		return fmt.Errorf("%w: formation %d has negative size %d", ErrInvalidRecord, rec.ID, rec.Size)
	}
	if !rec.Direction.Valid() {
		return fmt.Errorf("%w: formation %d has direction %d", ErrInvalidRecord, rec.ID, rec.Direction)
	}
	if len(rec.Entries) > rec.Size {
		return fmt.Errorf("%w: formation %d has %d entries for size %d", ErrInvalidRecord, rec.ID, len(rec.Entries), rec.Size)
	}
	seenPos := make(map[int]struct{}, len(rec.Entries))
	seenCar := make(map[core.CarID]struct{}, len(rec.Entries))
	for i, e := range rec.Entries {
		if e.EntryID < 0 || e.EntryID >= rec.Size {
			return fmt.Errorf("%w: formation %d entry %d: entry id %d out of range", ErrInvalidRecord, rec.ID, i, e.EntryID)
		}
		if !e.Dir.Valid() {
			return fmt.Errorf("%w: formation %d entry %d: dir %d", ErrInvalidRecord, rec.ID, i, e.Dir)
		}
		if _, dup := seenPos[e.EntryID]; dup {
			return fmt.Errorf("%w: formation %d: duplicate entry id %d", ErrInvalidRecord, rec.ID, e.EntryID)
		}
		if _, dup := seenCar[e.Car]; dup {
			return fmt.Errorf("%w: formation %d: car %d listed twice", ErrInvalidRecord, rec.ID, e.Car)
		}
		seenPos[e.EntryID] = struct{}{}
		seenCar[e.Car] = struct{}{}
	}
	return nil
}

// Decode validates rec and registers the formation it describes. With
// withEntries each entry is installed at its entry id; cars that resolve
// cannot be found leave their slot empty. Nothing is broadcast.
func (m *Manager) Decode(rec core.FormationRecord, withEntries bool, resolve ResolveFunc) (*Formation, error) {
	if err := Validate(rec); err != nil {
		return nil, err
	}
	if _, live := m.formations[rec.ID]; live {
		return nil, fmt.Errorf("decode formation %d: %w", rec.ID, ErrFormationExists)
	}
	if m.Retired(rec.ID) {
		return nil, fmt.Errorf("decode formation %d: retired: %w", rec.ID, ErrFormationExists)
	}

	f := m.NewFormation(rec.ID, rec.Size)
	f.direction = rec.Direction
	if !withEntries {
		return f, nil
	}
	for _, er := range rec.Entries {
		var car core.Car
		ok := false
		if resolve != nil {
			car, ok = resolve(er.Car)
		}
		if !ok {
			m.logger.Debug("Unresolved car in formation record", "formationId", rec.ID, "car", er.Car)
			continue
		}
		f.setEntry(&Entry{Car: car, EntryID: er.EntryID, Dir: er.Dir}, er.EntryID)
		car.SetMembership(core.Membership{Formation: f.id, EntryID: er.EntryID, Dir: er.Dir})
	}
	return f, nil
}
