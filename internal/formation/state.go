package formation

import "github.com/railsim/formation/pkg/core"

// SetTrainDirection sets the formation direction so that origin faces dir,
// then pushes each car's effective direction. origin must be a member.
func (f *Formation) SetTrainDirection(dir core.Orientation, origin core.Car) {
	i := f.indexOf(origin)
	if i < 0 {
		return
	}
	f.direction = dir.Xor(f.entries[i].Dir)
	for _, e := range f.entries {
		if e != nil {
			e.Car.SetTrainDirectionNoSync(f.direction.Xor(e.Dir))
		}
	}
}

// SetTrainStateData distributes one state channel value across the formation.
//
// Direction: a front or back selection makes origin the control car; origin
// gets data and every other car is put back to center. Door: the right and
// left bits are swapped for cars facing against the formation. Every other
// channel is copied verbatim.
func (f *Formation) SetTrainStateData(ch core.StateChannel, data byte, origin core.Car) {
	switch ch {
	case core.ChannelDirection:
		f.setDirectionState(data, origin)
	case core.ChannelDoor:
		door := core.DoorState(data)
		for _, e := range f.entries {
			if e == nil {
				continue
			}
			d := door
			if e.Dir != f.direction {
				d = door.Mirror()
			}
			e.Car.SetStateNoSync(ch, byte(d))
		}
	default:
		for _, e := range f.entries {
			if e != nil {
				e.Car.SetStateNoSync(ch, data)
			}
		}
	}
}

func (f *Formation) setDirectionState(data byte, origin core.Car) {
	if f.indexOf(origin) < 0 {
		return
	}
	if core.IsDrivingDirection(data) {
		f.controlCar = origin.ID()
		f.hasControlCar = true
		origin.SetTrainDirection(origin.TrainDirection())
	}
	for _, e := range f.entries {
		if e == nil {
			continue
		}
		if e.Car.ID() == origin.ID() {
			e.Car.SetState(core.ChannelDirection, data)
		} else if e.Car.State(core.ChannelDirection) != core.DirectionCenter {
			e.Car.SetStateNoSync(core.ChannelDirection, core.DirectionCenter)
		}
	}
}
