package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/internal/vehicle"
	"github.com/railsim/formation/pkg/core"
)

func TestCarCache_NewCarCache(t *testing.T) {
	cache := NewCarCache()

	require.NotNil(t, cache)
	assert.Equal(t, 0, cache.Len())
}

func TestCarCache_AddAndGet(t *testing.T) {
	cache := NewCarCache()

	cache.Add(vehicle.New(42, true))

	got, ok := cache.Get(42)
	require.True(t, ok, "expected to find car with ID 42")
	assert.Equal(t, core.CarID(42), got.ID())
	assert.True(t, got.IsControlCar())
}

func TestCarCache_Get_NotFound(t *testing.T) {
	cache := NewCarCache()

	_, ok := cache.Get(999)
	assert.False(t, ok, "expected not to find car with ID 999")

	_, ok = cache.Resolve(999)
	assert.False(t, ok)
}

func TestCarCache_Resolve(t *testing.T) {
	cache := NewCarCache()
	car := vehicle.New(3, false)
	cache.Add(car)

	got, ok := cache.Resolve(3)
	require.True(t, ok)
	assert.Same(t, car, got)
}

func TestCarCache_DeleteAndAll(t *testing.T) {
	cache := NewCarCache()
	for _, id := range []core.CarID{5, 1, 3} {
		cache.Add(vehicle.New(id, false))
	}

	cache.Delete(3)
	cache.Delete(100)

	var ids []core.CarID
	for _, c := range cache.All() {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []core.CarID{1, 5}, ids)
}

func TestCarCache_AddReplaces(t *testing.T) {
	cache := NewCarCache()
	cache.Add(vehicle.New(1, false))
	replacement := vehicle.New(1, true)

	cache.Add(replacement)

	got, ok := cache.Get(1)
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, 1, cache.Len())
}

func TestCarCache_Concurrent(t *testing.T) {
	cache := NewCarCache()
	var wg sync.WaitGroup

	for i := core.CarID(0); i < 100; i++ {
		wg.Add(2)
		go func(id core.CarID) {
			defer wg.Done()
			cache.Add(vehicle.New(id, false))
		}(i)
		go func(id core.CarID) {
			defer wg.Done()
			cache.Get(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, cache.Len())
}
