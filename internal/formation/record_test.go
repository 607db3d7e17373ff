package formation

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/pkg/core"
)

func resolverFor(cars ...*fakeCar) ResolveFunc {
	byID := make(map[core.CarID]core.Car, len(cars))
	for _, c := range cars {
		byID[c.id] = c
	}
	return func(id core.CarID) (core.Car, bool) {
		c, ok := byID[id]
		return c, ok
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	b := &recordingBroadcaster{}
	src := NewManager(b, nil)
	cars := []*fakeCar{newFakeCar(10), newFakeCar(11), newFakeCar(12)}
	f := build(src, b, []core.Orientation{0, 1, 0}, cars...)
	f.SetTrainDirection(core.Reverse, cars[1])

	data, err := json.Marshal(f.Record(true))
	require.NoError(t, err)

	var rec core.FormationRecord
	require.NoError(t, json.Unmarshal(data, &rec))

	dstB := &recordingBroadcaster{}
	dst := NewManager(dstB, nil)
	got, err := dst.Decode(rec, true, resolverFor(cars...))
	require.NoError(t, err)

	assert.Equal(t, f.ID(), got.ID())
	assert.Equal(t, f.Size(), got.Size())
	assert.Equal(t, f.Direction(), got.Direction())
	if diff := cmp.Diff(slots(f), slots(got)); diff != "" {
		t.Errorf("decoded entries mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, dstB.changed, "decoding does not broadcast")
	assert.Greater(t, dst.NewID(), f.ID())
}

func TestRecord_WithoutEntries(t *testing.T) {
	b := &recordingBroadcaster{}
	m := NewManager(b, nil)
	f := build(m, b, nil, newFakeCar(1), newFakeCar(2))

	rec := f.Record(false)
	assert.Nil(t, rec.Entries)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"size":2,"direction":0}`, string(data))

	dst := NewManager(nil, nil)
	got, err := dst.Decode(rec, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Size())
	assert.Empty(t, got.Cars())
}

func TestDecode_UnresolvedCarLeavesEmptySlot(t *testing.T) {
	m := NewManager(nil, nil)
	known := newFakeCar(2)
	rec := core.FormationRecord{
		ID:   5,
		Size: 2,
		Entries: []core.EntryRecord{
			{Car: 1, EntryID: 0},
			{Car: 2, EntryID: 1, Dir: core.Reverse},
		},
	}

	f, err := m.Decode(rec, true, resolverFor(known))
	require.NoError(t, err)

	assert.Equal(t, []slot{{Empty: true}, {Car: 2, EntryID: 1, Dir: core.Reverse}}, slots(f))
	assert.Equal(t, core.Membership{Formation: 5, EntryID: 1, Dir: core.Reverse}, known.membership)
}

func TestDecode_PlacesEntriesByEntryID(t *testing.T) {
	m := NewManager(nil, nil)
	a, c := newFakeCar(1), newFakeCar(2)
	rec := core.FormationRecord{
		ID:   3,
		Size: 2,
		Entries: []core.EntryRecord{
			{Car: 2, EntryID: 1},
			{Car: 1, EntryID: 0},
		},
	}

	f, err := m.Decode(rec, true, resolverFor(a, c))
	require.NoError(t, err)

	assert.Equal(t, []core.CarID{1, 2}, carIDs(f))
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		rec  core.FormationRecord
	}{
		{"zero id", core.FormationRecord{ID: 0, Size: 1}},
		{"negative size", core.FormationRecord{ID: 1, Size: -1}},
		{"bad direction", core.FormationRecord{ID: 1, Size: 1, Direction: 2}},
		{"too many entries", core.FormationRecord{ID: 1, Size: 1, Entries: []core.EntryRecord{
			{Car: 1, EntryID: 0}, {Car: 2, EntryID: 0},
		}}},
		{"entry id out of range", core.FormationRecord{ID: 1, Size: 2, Entries: []core.EntryRecord{
			{Car: 1, EntryID: 2},
		}}},
		{"negative entry id", core.FormationRecord{ID: 1, Size: 2, Entries: []core.EntryRecord{
			{Car: 1, EntryID: -1},
		}}},
		{"duplicate entry id", core.FormationRecord{ID: 1, Size: 2, Entries: []core.EntryRecord{
			{Car: 1, EntryID: 1}, {Car: 2, EntryID: 1},
		}}},
		{"duplicate car", core.FormationRecord{ID: 1, Size: 2, Entries: []core.EntryRecord{
			{Car: 1, EntryID: 0}, {Car: 1, EntryID: 1},
		}}},
		{"bad entry dir", core.FormationRecord{ID: 1, Size: 1, Entries: []core.EntryRecord{
			{Car: 1, EntryID: 0, Dir: 3},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil, nil)

			f, err := m.Decode(tt.rec, true, resolverFor(newFakeCar(1), newFakeCar(2)))

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
			assert.Nil(t, f)
			assert.Equal(t, 0, m.Len(), "failed decode must not register")
			assert.Zero(t, m.LastID())
		})
	}
}

func TestDecode_LiveIDRejected(t *testing.T) {
	m := NewManager(nil, nil)
	m.NewFormation(4, 2)

	_, err := m.Decode(core.FormationRecord{ID: 4, Size: 2}, false, nil)

	assert.ErrorIs(t, err, ErrFormationExists)
}

func TestDecode_RetiredIDRejected(t *testing.T) {
	m := NewManager(nil, nil)
	f := m.NewFormation(m.NewID(), 2)
	m.Remove(f.ID())
	require.True(t, m.Retired(f.ID()))

	got, err := m.Decode(core.FormationRecord{ID: f.ID(), Size: 2}, false, nil)

	assert.ErrorIs(t, err, ErrFormationExists)
	assert.Nil(t, got)
	assert.Equal(t, 0, m.Len())
	assert.True(t, m.Retired(f.ID()), "the id stays retired")
}
