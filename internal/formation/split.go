package formation

import (
	"slices"

	"github.com/railsim/formation/pkg/core"
)

// ConnectTrain couples other onto f. carA belongs to f and carB to other;
// dirA and dirB are the coupling sides reported for each car. When either car
// cannot be found nothing changes.
//
// After coupling f holds both sets of cars, every car is braked to a stop with
// its direction set to center, and other is deregistered.
func (f *Formation) ConnectTrain(carA, carB core.Car, dirA, dirB core.Orientation, other *Formation) {
	if other == nil || other == f {
		return
	}
	ia := f.indexOf(carA)
	if ia < 0 {
		return
	}
	ib := other.indexOf(carB)
	if ib < 0 {
		return
	}

	if f.entries[ia].Dir == dirA {
		f.reverse()
	}
	if other.entries[ib].Dir != dirB {
		other.reverse()
	}

	sizeA, sizeB := len(f.entries), len(other.entries)
	f.entries = append(slices.Clone(f.entries), other.entries...)
	other.entries = nil
	f.reallocation()

	f.SetSpeed(0)
	for _, e := range f.entries {
		if e == nil {
			continue
		}
		e.Car.SetNotch(core.EmergencyBrakeNotch)
		e.Car.SetSpeed(0)
		e.Car.SetState(core.ChannelDirection, core.DirectionCenter)
	}

	f.manager.logger.Debug("Formations coupled",
		"formationId", f.id,
		"absorbedId", other.id,
		"sizeA", sizeA,
		"sizeB", sizeB,
	)
	f.manager.Remove(other.id)
}

// OnRemovedTrain detaches car after it left the world. A formation of one
// car dissolves. Removing the head or tail trims f; removing an interior car
// moves every car behind it into a new formation.
func (f *Formation) OnRemovedTrain(car core.Car) {
	if len(f.entries) <= 1 {
		if f.indexOf(car) >= 0 {
			car.SetMembership(core.Membership{})
		}
		f.manager.Remove(f.id)
		return
	}

	k := f.indexOf(car)
	if k < 0 {
		return
	}
	n := len(f.entries)

	switch k {
	case 0:
		f.trim(1, n)
	case n - 1:
		f.trim(0, n-1)
	default:
		tail := f.splitOff(k + 1)
		f.trim(0, k)
		tail.reallocation()
		f.manager.logger.Debug("Formation split on removal",
			"formationId", f.id,
			"newId", tail.id,
			"position", k,
		)
	}
	car.SetMembership(core.Membership{})
	f.reallocation()
}

// OnDisconnectedTrain uncouples car on side. The cut is in front of the car
// when side matches the car's direction bit and behind it otherwise; all cars
// from the cut onward move into a new formation. A cut at either end of the
// formation changes nothing.
func (f *Formation) OnDisconnectedTrain(car core.Car, side core.CouplerSide) {
	k := f.indexOf(car)
	if k < 0 {
		return
	}
	cut := k + 1
	if side.Orientation() == f.entries[k].Dir {
		cut = k
	}
	if cut <= 0 || cut >= len(f.entries) {
		return
	}

	tail := f.splitOff(cut)
	tail.reallocation()
	f.trim(0, cut)
	f.reallocation()

	f.manager.logger.Debug("Formation uncoupled",
		"formationId", f.id,
		"newId", tail.id,
		"car", car.ID(),
		"cut", cut,
	)
}

// splitOff registers a new formation holding entries[from:] of f. The new
// formation keeps f's direction. f itself is not modified.
func (f *Formation) splitOff(from int) *Formation {
	m := f.manager
	tail := m.NewFormation(m.NewID(), len(f.entries)-from)
	tail.direction = f.direction
	for i := from; i < len(f.entries); i++ {
		tail.setEntry(f.entries[i], i-from)
	}
	return tail
}
