// pkg/core/record.go
package core

// FormationRecord is the persisted and broadcast form of a formation.
// Entries is only populated when the record was built with entries.
type FormationRecord struct {
	ID        FormationID   `json:"id"`
	Size      int           `json:"size"`
	Direction Orientation   `json:"direction"`
	Entries   []EntryRecord `json:"entries,omitempty"`
}

// EntryRecord is one car's membership inside a FormationRecord.
type EntryRecord struct {
	Car     CarID       `json:"car"`
	EntryID int         `json:"entryId"`
	Dir     Orientation `json:"dir"`
}

// CarIDs returns the car references in entry order.
func (r FormationRecord) CarIDs() []CarID {
	ids := make([]CarID, 0, len(r.Entries))
	for _, e := range r.Entries {
		ids = append(ids, e.Car)
	}
	return ids
}

// CarRecord is the persisted and broadcast form of a car.
type CarRecord struct {
	ID        CarID                 `json:"id"`
	Control   bool                  `json:"control"`
	Notch     int                   `json:"notch"`
	Speed     float32               `json:"speed"`
	Direction Orientation           `json:"direction"`
	Position  float64               `json:"position"`
	Length    float64               `json:"length"`
	States    map[StateChannel]byte `json:"states,omitempty"`

	// Membership at the time the record was taken. Not used when restoring.
	Formation FormationID `json:"formation,omitempty"`
	EntryID   int         `json:"entryId,omitempty"`
	Dir       Orientation `json:"dir,omitempty"`
}
