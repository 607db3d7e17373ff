package sim

import (
	"fmt"
	"time"

	"github.com/railsim/formation/internal/formation"
	"github.com/railsim/formation/internal/vehicle"
	"github.com/railsim/formation/pkg/core"
	"github.com/railsim/formation/pkg/streaming"
)

// Spawn adds a car in a single-car formation of its own and returns the
// formation's id.
func (s *Simulation) Spawn(id core.CarID, control bool) (core.FormationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.afterMutation()

	if _, ok := s.cars.Get(id); ok {
		return 0, fmt.Errorf("spawn %d: %w", id, ErrCarExists)
	}
	car := vehicle.New(id, control)
	s.cars.Add(car)
	delete(s.deletedCars, id)
	f := s.newSingleFormation(car)
	s.log.Debug("Spawned car", "car", id, "control", control, "formation", f.ID())
	return f.ID(), nil
}

// Remove takes a car out of the simulation, splitting its formation.
func (s *Simulation) Remove(id core.CarID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.afterMutation()

	car, ok := s.cars.Get(id)
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrUnknownCar)
	}
	if f, ok := s.formationOf(car); ok {
		f.OnRemovedTrain(car)
	}
	s.cars.Delete(id)
	s.deletedCars[id] = struct{}{}
	s.log.Debug("Removed car", "car", id)
	return nil
}

// Couple joins the formations of carA and carB at those cars. dirA and dirB
// are the coupling orientations of the two cars. The formation of carA
// absorbs the other one and its id is returned.
func (s *Simulation) Couple(a, b core.CarID, dirA, dirB core.Orientation) (core.FormationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.afterMutation()

	carA, fa, err := s.member(a)
	if err != nil {
		return 0, fmt.Errorf("couple: %w", err)
	}
	carB, fb, err := s.member(b)
	if err != nil {
		return 0, fmt.Errorf("couple: %w", err)
	}
	if fa == fb {
		return 0, fmt.Errorf("couple %d and %d: %w", a, b, ErrSameFormation)
	}

	fa.ConnectTrain(carA, carB, dirA, dirB, fb)
	return fa.ID(), nil
}

// Uncouple opens the coupler on side of the car. It returns the formation
// the car belonged to and, when the formation split, the id of the new one.
// The car itself may end up in either.
func (s *Simulation) Uncouple(id core.CarID, side core.CouplerSide) ([]core.FormationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.afterMutation()

	car, f, err := s.member(id)
	if err != nil {
		return nil, fmt.Errorf("uncouple: %w", err)
	}

	before := s.manager.LastID()
	ids := []core.FormationID{f.ID()}
	f.OnDisconnectedTrain(car, side)

	if last := s.manager.LastID(); last > before {
		ids = append(ids, last)
	}
	return ids, nil
}

// State sets a state channel from the given car across its formation.
func (s *Simulation) State(id core.CarID, ch core.StateChannel, data byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.afterMutation()

	if !ch.Valid() {
		return fmt.Errorf("state: unknown channel %d", ch)
	}
	car, f, err := s.member(id)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	f.SetTrainStateData(ch, data, car)
	return nil
}

// Direction sets the travel direction of the car's formation as seen from
// that car.
func (s *Simulation) Direction(id core.CarID, dir core.Orientation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.afterMutation()

	if !dir.Valid() {
		return fmt.Errorf("direction: invalid orientation %d", dir)
	}
	car, f, err := s.member(id)
	if err != nil {
		return fmt.Errorf("direction: %w", err)
	}
	f.SetTrainDirection(dir, car)
	return nil
}

// Notch sets the car's power/brake notch. Only a formation's control car
// drives its speed.
func (s *Simulation) Notch(id core.CarID, notch int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.afterMutation()

	if notch < core.EmergencyBrakeNotch || notch > MaxNotch {
		return fmt.Errorf("notch %d out of range [%d, %d]", notch, core.EmergencyBrakeNotch, MaxNotch)
	}
	car, ok := s.cars.Get(id)
	if !ok {
		return fmt.Errorf("notch %d: %w", id, ErrUnknownCar)
	}
	car.SetNotch(notch)
	return nil
}

// Tick advances every formation n steps.
func (s *Simulation) Tick(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.afterMutation()

	for range n {
		start := time.Now()
		for _, f := range s.manager.Formations() {
			f.SetSpeed(NextSpeed(f.Speed(), f.Notch()))
			f.UpdateTrainMovement()
		}
		s.ticks.Add(1)
		elapsed := time.Since(start)
		s.lastTick.Store(int64(elapsed))
		s.metrics.recordTick(elapsed)
	}
}

func (s *Simulation) newSingleFormation(car *vehicle.Car) *formation.Formation {
	f := s.manager.NewFormation(s.manager.NewID(), 1)
	f.SetTrain(car, 0, core.Forward)
	return f
}

func (s *Simulation) formationOf(car *vehicle.Car) (*formation.Formation, bool) {
	m := car.Membership()
	if !m.InFormation() {
		return nil, false
	}
	return s.manager.Get(m.Formation)
}

func (s *Simulation) member(id core.CarID) (*vehicle.Car, *formation.Formation, error) {
	car, ok := s.cars.Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("car %d: %w", id, ErrUnknownCar)
	}
	f, ok := s.formationOf(car)
	if !ok {
		return nil, nil, fmt.Errorf("car %d: %w", id, ErrNotInFormation)
	}
	return car, f, nil
}

// afterMutation publishes synced car fields. Must be called with s.mu held.
func (s *Simulation) afterMutation() {
	for _, car := range s.cars.All() {
		p := car.Pending()
		if p.Empty() {
			continue
		}
		payload := streaming.CarStatePayload{Car: car.ID()}
		if p.Notch {
			notch := car.Notch()
			payload.Notch = &notch
		}
		if p.Speed {
			speed := car.Speed()
			payload.Speed = &speed
		}
		if p.Direction {
			dir := car.TrainDirection()
			payload.Direction = &dir
		}
		if len(p.States) > 0 {
			payload.States = make(map[core.StateChannel]byte, len(p.States))
			for _, ch := range p.States {
				payload.States[ch] = car.State(ch)
			}
		}
		car.ClearPending()
		s.observer.CarChanged(payload)
	}
	s.formationCount.Store(int64(s.manager.Len()))
}
