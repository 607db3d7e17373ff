package formation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/pkg/core"
)

func TestManager_NewIDMonotonic(t *testing.T) {
	m := NewManager(nil, nil)

	seen := make(map[core.FormationID]bool)
	var last core.FormationID
	for range 100 {
		f := m.NewFormation(m.NewID(), 2)
		assert.Greater(t, f.ID(), last)
		assert.False(t, seen[f.ID()], "id %d issued twice", f.ID())
		seen[f.ID()] = true
		last = f.ID()
		m.Remove(f.ID())
	}
	assert.Equal(t, 0, m.Len())
}

func TestManager_NewIDAboveRegistered(t *testing.T) {
	m := NewManager(nil, nil)
	m.NewFormation(40, 2)

	assert.Equal(t, core.FormationID(41), m.NewID())
}

func TestManager_RemoveIdempotent(t *testing.T) {
	b := &recordingBroadcaster{}
	m := NewManager(b, nil)
	f := m.NewFormation(m.NewID(), 2)

	m.Remove(f.ID())
	m.Remove(f.ID())
	m.Remove(999)

	_, ok := m.Get(f.ID())
	assert.False(t, ok)
	assert.True(t, m.Retired(f.ID()))
	assert.False(t, m.Retired(999))
	assert.Equal(t, []core.FormationID{f.ID()}, b.removed)
}

func TestManager_FormationsOrderedByID(t *testing.T) {
	m := NewManager(nil, nil)
	m.NewFormation(7, 1)
	m.NewFormation(3, 1)
	m.NewFormation(5, 1)

	var ids []core.FormationID
	for _, f := range m.Formations() {
		ids = append(ids, f.ID())
	}
	assert.Equal(t, []core.FormationID{3, 5, 7}, ids)
}

func TestManager_FindByCar(t *testing.T) {
	b := &recordingBroadcaster{}
	m := NewManager(b, nil)
	a, c := newFakeCar(1), newFakeCar(2)
	f := build(m, b, nil, a, c)

	got, ok := m.FindByCar(2)
	require.True(t, ok)
	assert.Same(t, f, got)

	_, ok = m.FindByCar(3)
	assert.False(t, ok)
}
