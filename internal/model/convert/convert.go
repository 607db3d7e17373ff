// Package convert provides functions to convert between GORM models and core records
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/railsim/formation/internal/model"
	"github.com/railsim/formation/pkg/core"
	"gorm.io/datatypes"
)

// CoreToFormation converts a core.FormationRecord to a GORM model.Formation.
func CoreToFormation(rec core.FormationRecord) model.Formation {
	entries := make(datatypes.JSONSlice[model.EntryRow], 0, len(rec.Entries))
	for _, e := range rec.Entries {
		entries = append(entries, model.EntryRow{
			Car:     uint32(e.Car),
			EntryID: e.EntryID,
			Dir:     uint8(e.Dir),
		})
	}
	return model.Formation{
		ID:        uint64(rec.ID),
		Size:      rec.Size,
		Direction: uint8(rec.Direction),
		Entries:   entries,
	}
}

// FormationToCore converts a GORM Formation to a core.FormationRecord.
func FormationToCore(f model.Formation) core.FormationRecord {
	rec := core.FormationRecord{
		ID:        core.FormationID(f.ID),
		Size:      f.Size,
		Direction: core.Orientation(f.Direction),
	}
	if len(f.Entries) > 0 {
		rec.Entries = make([]core.EntryRecord, 0, len(f.Entries))
		for _, e := range f.Entries {
			rec.Entries = append(rec.Entries, core.EntryRecord{
				Car:     core.CarID(e.Car),
				EntryID: e.EntryID,
				Dir:     core.Orientation(e.Dir),
			})
		}
	}
	return rec
}

// CoreToCar converts a core.CarRecord to a GORM model.Car.
// Channel states are stored as a JSON object keyed by channel id.
func CoreToCar(rec core.CarRecord) (model.Car, error) {
	states := datatypes.JSON("{}")
	if len(rec.States) > 0 {
		data, err := json.Marshal(rec.States)
		if err != nil {
			return model.Car{}, fmt.Errorf("failed to marshal states of car %d: %w", rec.ID, err)
		}
		states = datatypes.JSON(data)
	}
	return model.Car{
		ID:        uint32(rec.ID),
		Control:   rec.Control,
		Notch:     rec.Notch,
		Speed:     rec.Speed,
		Direction: uint8(rec.Direction),
		Position:  rec.Position,
		Length:    rec.Length,
		States:    states,
	}, nil
}

// CarToCore converts a GORM Car to a core.CarRecord.
func CarToCore(c model.Car) (core.CarRecord, error) {
	rec := core.CarRecord{
		ID:        core.CarID(c.ID),
		Control:   c.Control,
		Notch:     c.Notch,
		Speed:     c.Speed,
		Direction: core.Orientation(c.Direction),
		Position:  c.Position,
		Length:    c.Length,
	}
	if len(c.States) > 0 {
		states := make(map[core.StateChannel]byte)
		if err := json.Unmarshal(c.States, &states); err != nil {
			return core.CarRecord{}, fmt.Errorf("failed to unmarshal states of car %d: %w", c.ID, err)
		}
		if len(states) > 0 {
			rec.States = states
		}
	}
	return rec, nil
}
