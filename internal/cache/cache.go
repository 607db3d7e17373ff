package cache

import (
	"cmp"
	"slices"
	"sync"

	"github.com/railsim/formation/internal/vehicle"
	"github.com/railsim/formation/pkg/core"
)

// CarCache holds the live cars of a simulation keyed by id. Formation
// records reference cars by id and are resolved against it on load.
type CarCache struct {
	mu   sync.Mutex
	cars map[core.CarID]*vehicle.Car
}

func NewCarCache() *CarCache {
	return &CarCache{cars: make(map[core.CarID]*vehicle.Car)}
}

func (c *CarCache) Get(id core.CarID) (*vehicle.Car, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	car, ok := c.cars[id]
	return car, ok
}

// Add stores car, replacing any car with the same id.
func (c *CarCache) Add(car *vehicle.Car) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cars[car.ID()] = car
}

func (c *CarCache) Delete(id core.CarID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cars, id)
}

func (c *CarCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cars)
}

// All returns the cached cars ordered by id.
func (c *CarCache) All() []*vehicle.Car {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*vehicle.Car, 0, len(c.cars))
	for _, car := range c.cars {
		out = append(out, car)
	}
	slices.SortFunc(out, func(a, b *vehicle.Car) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// Resolve looks up a car for formation decoding.
func (c *CarCache) Resolve(id core.CarID) (core.Car, bool) {
	car, ok := c.Get(id)
	if !ok {
		return nil, false
	}
	return car, true
}
