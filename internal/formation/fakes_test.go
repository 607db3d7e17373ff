package formation

import (
	"github.com/railsim/formation/pkg/core"
)

// fakeCar implements core.Car and records every call the formation makes.
type fakeCar struct {
	id      core.CarID
	control bool

	notch      int
	speed      float32
	dir        core.Orientation
	states     map[core.StateChannel]byte
	synced     map[core.StateChannel]int
	unsynced   map[core.StateChannel]int
	membership core.Membership
	bogies     [2]*core.Bogie

	speedNoSyncCalls int
	speedSyncCalls   int
	dirSyncCalls     int
	membershipCalls  int

	moves  *[]moveCall
	leader core.Car
}

type moveCall struct {
	car    core.CarID
	leader core.CarID
	speed  float32
}

func newFakeCar(id core.CarID) *fakeCar {
	return &fakeCar{
		id:       id,
		states:   make(map[core.StateChannel]byte),
		synced:   make(map[core.StateChannel]int),
		unsynced: make(map[core.StateChannel]int),
		bogies: [2]*core.Bogie{
			{Car: id, Side: core.BogieFront},
			{Car: id, Side: core.BogieBack},
		},
	}
}

func (c *fakeCar) ID() core.CarID { return c.id }

func (c *fakeCar) Notch() int         { return c.notch }
func (c *fakeCar) SetNotch(notch int) { c.notch = notch }

func (c *fakeCar) Speed() float32 { return c.speed }
func (c *fakeCar) SetSpeed(speed float32) {
	c.speed = speed
	c.speedSyncCalls++
}
func (c *fakeCar) SetSpeedNoSync(speed float32) {
	c.speed = speed
	c.speedNoSyncCalls++
}

func (c *fakeCar) TrainDirection() core.Orientation { return c.dir }
func (c *fakeCar) SetTrainDirection(dir core.Orientation) {
	c.dir = dir
	c.dirSyncCalls++
}
func (c *fakeCar) SetTrainDirectionNoSync(dir core.Orientation) { c.dir = dir }

func (c *fakeCar) State(ch core.StateChannel) byte { return c.states[ch] }
func (c *fakeCar) SetState(ch core.StateChannel, data byte) {
	c.states[ch] = data
	c.synced[ch]++
}
func (c *fakeCar) SetStateNoSync(ch core.StateChannel, data byte) {
	c.states[ch] = data
	c.unsynced[ch]++
}

func (c *fakeCar) IsControlCar() bool { return c.control }

func (c *fakeCar) Bogie(side core.BogieSide) *core.Bogie {
	if side == core.BogieBack {
		return c.bogies[1]
	}
	return c.bogies[0]
}

func (c *fakeCar) SetMembership(m core.Membership) {
	c.membership = m
	c.membershipCalls++
}

func (c *fakeCar) Move(leader core.Car, targetSpeed float32) {
	c.leader = leader
	if c.moves == nil {
		return
	}
	var lid core.CarID
	if leader != nil {
		lid = leader.ID()
	}
	*c.moves = append(*c.moves, moveCall{car: c.id, leader: lid, speed: targetSpeed})
}

// recordingBroadcaster collects notifications in order.
type recordingBroadcaster struct {
	changed []core.FormationRecord
	removed []core.FormationID
}

func (b *recordingBroadcaster) FormationChanged(rec core.FormationRecord) {
	b.changed = append(b.changed, rec)
}

func (b *recordingBroadcaster) FormationRemoved(id core.FormationID) {
	b.removed = append(b.removed, id)
}

func (b *recordingBroadcaster) reset() {
	b.changed = nil
	b.removed = nil
}

// build registers a formation holding cars in order with the given entry
// directions. Broadcasts made while building are discarded.
func build(m *Manager, b *recordingBroadcaster, dirs []core.Orientation, cars ...*fakeCar) *Formation {
	f := m.NewFormation(m.NewID(), len(cars))
	for i, c := range cars {
		d := core.Forward
		if dirs != nil {
			d = dirs[i]
		}
		f.SetTrain(c, i, d)
	}
	b.reset()
	return f
}

func carIDs(f *Formation) []core.CarID {
	ids := make([]core.CarID, 0, f.Size())
	for _, c := range f.Cars() {
		ids = append(ids, c.ID())
	}
	return ids
}

func entryIDs(f *Formation) []int {
	ids := make([]int, 0, f.Size())
	for _, e := range f.entries {
		if e != nil {
			ids = append(ids, e.EntryID)
		}
	}
	return ids
}

func entryDirs(f *Formation) []core.Orientation {
	dirs := make([]core.Orientation, 0, f.Size())
	for _, e := range f.entries {
		if e != nil {
			dirs = append(dirs, e.Dir)
		}
	}
	return dirs
}
