// Package vehicle provides the concrete car driven by the simulation.
package vehicle

import (
	"maps"

	"github.com/railsim/formation/pkg/core"
)

// DefaultLength is the car length used when none is given.
const DefaultLength = 20.0

// Pending lists the fields changed through synced setters since the last
// ClearPending.
type Pending struct {
	Notch     bool
	Speed     bool
	Direction bool
	States    []core.StateChannel
}

// Empty reports whether nothing is waiting to be synced.
func (p Pending) Empty() bool {
	return !p.Notch && !p.Speed && !p.Direction && len(p.States) == 0
}

// Car is a rail car positioned on a one-dimensional track. Offsets grow
// towards the head of a forward formation.
//
// Car is not safe for concurrent use; the simulation serializes access.
type Car struct {
	id      core.CarID
	control bool
	length  float64

	notch     int
	speed     float32
	direction core.Orientation
	states    map[core.StateChannel]byte
	position  float64

	membership core.Membership
	bogies     [2]*core.Bogie

	pending Pending
	moves   uint64
}

var _ core.Car = (*Car)(nil)

// New creates a car at position 0 with every channel at its zero value
// except the direction channel, which starts at center.
func New(id core.CarID, control bool) *Car {
	c := &Car{
		id:      id,
		control: control,
		length:  DefaultLength,
		states:  make(map[core.StateChannel]byte),
		bogies: [2]*core.Bogie{
			{Car: id, Side: core.BogieFront},
			{Car: id, Side: core.BogieBack},
		},
	}
	c.states[core.ChannelDirection] = core.DirectionCenter
	return c
}

// FromRecord restores a car from its persisted form. Membership is not
// restored; it is pushed again when the car's formation is decoded.
func FromRecord(rec core.CarRecord) *Car {
	c := New(rec.ID, rec.Control)
	c.notch = rec.Notch
	c.speed = rec.Speed
	c.direction = rec.Direction
	c.position = rec.Position
	if rec.Length > 0 {
		c.length = rec.Length
	}
	maps.Copy(c.states, rec.States)
	return c
}

// Record returns the car's persisted form.
func (c *Car) Record() core.CarRecord {
	return core.CarRecord{
		ID:        c.id,
		Control:   c.control,
		Notch:     c.notch,
		Speed:     c.speed,
		Direction: c.direction,
		Position:  c.position,
		Length:    c.length,
		States:    maps.Clone(c.states),
		Formation: c.membership.Formation,
		EntryID:   c.membership.EntryID,
		Dir:       c.membership.Dir,
	}
}

func (c *Car) ID() core.CarID { return c.id }

func (c *Car) Notch() int { return c.notch }

func (c *Car) SetNotch(notch int) {
	c.notch = notch
	c.pending.Notch = true
}

func (c *Car) Speed() float32 { return c.speed }

func (c *Car) SetSpeed(speed float32) {
	c.speed = speed
	c.pending.Speed = true
}

func (c *Car) SetSpeedNoSync(speed float32) { c.speed = speed }

func (c *Car) TrainDirection() core.Orientation { return c.direction }

func (c *Car) SetTrainDirection(dir core.Orientation) {
	c.direction = dir
	c.pending.Direction = true
}

func (c *Car) SetTrainDirectionNoSync(dir core.Orientation) { c.direction = dir }

func (c *Car) State(ch core.StateChannel) byte { return c.states[ch] }

func (c *Car) SetState(ch core.StateChannel, data byte) {
	c.states[ch] = data
	for _, p := range c.pending.States {
		if p == ch {
			return
		}
	}
	c.pending.States = append(c.pending.States, ch)
}

func (c *Car) SetStateNoSync(ch core.StateChannel, data byte) { c.states[ch] = data }

func (c *Car) IsControlCar() bool { return c.control }

// SetControlCar changes whether the car has a driver's cab.
func (c *Car) SetControlCar(control bool) { c.control = control }

func (c *Car) Bogie(side core.BogieSide) *core.Bogie {
	if side == core.BogieBack {
		return c.bogies[1]
	}
	return c.bogies[0]
}

func (c *Car) SetMembership(m core.Membership) { c.membership = m }

// Membership returns the last membership pushed by a formation.
func (c *Car) Membership() core.Membership { return c.membership }

// Position returns the car's track offset.
func (c *Car) Position() float64 { return c.position }

// Length returns the car's length.
func (c *Car) Length() float64 { return c.length }

// Moves returns how many times Move has been called.
func (c *Car) Moves() uint64 { return c.moves }

// Move advances the car. A forward formation travels towards larger offsets
// and a reversed one towards smaller offsets. The head car covers
// targetSpeed; a follower is placed directly behind its leader.
func (c *Car) Move(leader core.Car, targetSpeed float32) {
	c.moves++
	sign := 1.0
	if c.direction.Xor(c.membership.Dir) == core.Reverse {
		sign = -1.0
	}
	l, ok := leader.(*Car)
	if !ok || l == nil {
		c.position += sign * float64(targetSpeed)
		return
	}
	c.position = l.position - sign*(l.length+c.length)/2
}

// Pending returns the fields changed through synced setters.
func (c *Car) Pending() Pending {
	p := c.pending
	p.States = append([]core.StateChannel(nil), c.pending.States...)
	return p
}

// ClearPending marks every pending field as synced.
func (c *Car) ClearPending() {
	c.pending = Pending{}
}
