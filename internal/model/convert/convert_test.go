package convert

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/internal/model"
	"github.com/railsim/formation/pkg/core"
)

func TestFormationRoundTrip(t *testing.T) {
	rec := core.FormationRecord{
		ID:        12,
		Size:      3,
		Direction: core.Reverse,
		Entries: []core.EntryRecord{
			{Car: 4, EntryID: 0, Dir: core.Forward},
			{Car: 9, EntryID: 2, Dir: core.Reverse},
		},
	}

	row := CoreToFormation(rec)
	assert.Equal(t, uint64(12), row.ID)
	assert.Equal(t, model.EntryRow{Car: 9, EntryID: 2, Dir: 1}, row.Entries[1])

	if diff := cmp.Diff(rec, FormationToCore(row)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFormationToCore_NoEntries(t *testing.T) {
	rec := FormationToCore(model.Formation{ID: 1, Size: 2})

	assert.Nil(t, rec.Entries)
	assert.Equal(t, 2, rec.Size)
}

func TestCarRoundTrip(t *testing.T) {
	rec := core.CarRecord{
		ID:        5,
		Control:   true,
		Notch:     -8,
		Speed:     0.5,
		Direction: core.Reverse,
		Position:  120.25,
		Length:    19.5,
		States: map[core.StateChannel]byte{
			core.ChannelDirection: core.DirectionBack,
			core.ChannelDoor:      byte(core.DoorLeft),
		},
	}

	row, err := CoreToCar(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"4":2,"10":2}`, string(row.States))

	got, err := CarToCore(row)
	require.NoError(t, err)
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCarToCore_BadStates(t *testing.T) {
	_, err := CarToCore(model.Car{ID: 1, States: []byte("not json")})
	assert.Error(t, err)
}
