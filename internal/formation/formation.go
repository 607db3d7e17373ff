// Package formation maintains ordered train-sets of coupled cars: coupling,
// splitting, reindexing and the propagation of driver state across cars with
// independent orientation.
package formation

import (
	"fmt"
	"slices"

	"github.com/railsim/formation/pkg/core"
)

// Formation is an ordered set of cars operated as one control unit.
//
// Slots may be empty. After every reallocation each non-nil entry's EntryID
// equals its index.
type Formation struct {
	id        core.FormationID
	entries   []*Entry
	direction core.Orientation
	speed     float32

	// controlCar is resolved against entries on demand.
	controlCar    core.CarID
	hasControlCar bool

	manager *Manager
}

// ID returns the formation id.
func (f *Formation) ID() core.FormationID { return f.id }

// Size returns the number of slots, empty or not.
func (f *Formation) Size() int { return len(f.entries) }

// Direction returns the formation-level orientation.
func (f *Formation) Direction() core.Orientation { return f.direction }

// Speed returns the last dispatched target speed.
func (f *Formation) Speed() float32 { return f.speed }

// Entry returns a copy of the entry at position i. ok is false for an empty
// or out-of-range slot.
func (f *Formation) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(f.entries) || f.entries[i] == nil {
		return Entry{}, false
	}
	return *f.entries[i], true
}

// EntryOf returns a copy of the entry holding the car with the given id.
func (f *Formation) EntryOf(id core.CarID) (Entry, bool) {
	i := f.indexOfID(id)
	if i < 0 {
		return Entry{}, false
	}
	return *f.entries[i], true
}

// Cars returns the cars of every non-nil entry in array order.
func (f *Formation) Cars() []core.Car {
	cars := make([]core.Car, 0, len(f.entries))
	for _, e := range f.entries {
		if e != nil {
			cars = append(cars, e.Car)
		}
	}
	return cars
}

func (f *Formation) indexOfID(id core.CarID) int {
	for i, e := range f.entries {
		if e != nil && e.Car.ID() == id {
			return i
		}
	}
	return -1
}

func (f *Formation) indexOf(car core.Car) int {
	if car == nil {
		return -1
	}
	return f.indexOfID(car.ID())
}

// SetTrain installs car at position and broadcasts the formation.
// It panics if position is outside the formation.
func (f *Formation) SetTrain(car core.Car, position int, dir core.Orientation) {
	f.setEntry(&Entry{Car: car, EntryID: position, Dir: dir}, position)
	car.SetMembership(core.Membership{Formation: f.id, EntryID: position, Dir: dir})
	f.broadcast()
}

// ApplyEntry merges one entry of a received snapshot into a mirrored
// formation. A car already present is moved to entryID; an unknown car is
// installed there. Nothing is broadcast.
func (f *Formation) ApplyEntry(car core.Car, entryID int, dir core.Orientation) error {
	if entryID < 0 || entryID >= len(f.entries) {
		return fmt.Errorf("entry id %d out of range for formation %d of size %d", entryID, f.id, len(f.entries))
	}
	if i := f.indexOf(car); i >= 0 && i != entryID {
		f.entries[i] = nil
	}
	f.entries[entryID] = &Entry{Car: car, EntryID: entryID, Dir: dir}
	car.SetMembership(core.Membership{Formation: f.id, EntryID: entryID, Dir: dir})
	return nil
}

func (f *Formation) setEntry(e *Entry, position int) {
	if position < 0 || position >= len(f.entries) {
		panic(fmt.Sprintf("formation %d: position %d out of range for size %d", f.id, position, len(f.entries)))
	}
	f.entries[position] = e
}

// reallocation reindexes the entries, pushes the new membership to every car
// and broadcasts once.
func (f *Formation) reallocation() {
	f.entries = reindex(f.entries)
	for _, e := range f.entries {
		if e != nil {
			e.Car.SetMembership(core.Membership{Formation: f.id, EntryID: e.EntryID, Dir: e.Dir})
		}
	}
	f.broadcast()
}

// reverse mirrors the entry order and flips every entry's direction bit.
// Empty slots travel to the mirrored index unchanged.
func (f *Formation) reverse() {
	slices.Reverse(f.entries)
	for _, e := range f.entries {
		if e != nil {
			e.Dir = e.Dir.Flip()
		}
	}
}

// trim keeps entries[start:end].
func (f *Formation) trim(start, end int) {
	if start < 0 || end > len(f.entries) || start > end {
		panic(fmt.Sprintf("formation %d: trim [%d:%d] out of range for size %d", f.id, start, end, len(f.entries)))
	}
	f.entries = slices.Clone(f.entries[start:end])
}

func (f *Formation) broadcast() {
	f.manager.broadcaster.FormationChanged(f.Record(true))
}

// ControlCar returns the car currently issuing driver commands. The cached
// car is kept while it is still a member and still a control car; otherwise
// the first qualifying car is chosen, falling back to the cached one.
func (f *Formation) ControlCar() core.Car {
	var cached core.Car
	if f.hasControlCar {
		if i := f.indexOfID(f.controlCar); i >= 0 {
			cached = f.entries[i].Car
		}
	}
	if cached != nil && cached.IsControlCar() {
		return cached
	}
	for _, e := range f.entries {
		if e != nil && e.Car.IsControlCar() {
			f.controlCar = e.Car.ID()
			f.hasControlCar = true
			return e.Car
		}
	}
	return cached
}

// Notch returns the control car's notch, or 0 without a control car.
func (f *Formation) Notch() int {
	c := f.ControlCar()
	if c == nil {
		return 0
	}
	return c.Notch()
}

// SetSpeed pushes value to every car unless it equals the last dispatched speed.
func (f *Formation) SetSpeed(value float32) {
	if value == f.speed {
		return
	}
	for _, e := range f.entries {
		if e != nil {
			e.Car.SetSpeedNoSync(value)
		}
	}
	f.speed = value
}

// ContainsBogie reports whether b is mounted on any car of the formation.
func (f *Formation) ContainsBogie(b *core.Bogie) bool {
	if b == nil {
		return false
	}
	for _, e := range f.entries {
		if e == nil {
			continue
		}
		if e.Car.Bogie(core.BogieFront) == b || e.Car.Bogie(core.BogieBack) == b {
			return true
		}
	}
	return false
}

// IsFrontCar reports whether car occupies the head slot for the current direction.
func (f *Formation) IsFrontCar(car core.Car) bool {
	if car == nil || len(f.entries) == 0 {
		return false
	}
	head := f.entries[0]
	if f.direction == core.Reverse {
		head = f.entries[len(f.entries)-1]
	}
	return head != nil && head.Car.ID() == car.ID()
}

// UpdateTrainMovement moves every car head first, each against the car ahead
// of it so followers see the leader's position from this tick.
func (f *Formation) UpdateTrainMovement() {
	var prev core.Car
	n := len(f.entries)
	for i := range n {
		idx := i
		if f.direction == core.Reverse {
			idx = n - i - 1
		}
		e := f.entries[idx]
		if e == nil {
			continue
		}
		e.Car.Move(prev, f.speed)
		prev = e.Car
	}
}
