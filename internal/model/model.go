package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Formation{},
	&Car{},
	&FlushRun{},
}

////////////////////////
// FORMATIONS
////////////////////////

// Formation is a persisted formation. Entries are stored inline as JSON.
type Formation struct {
	ID        uint64                       `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time                    `json:"createdAt"`
	UpdatedAt time.Time                    `json:"updatedAt"`
	Size      int                          `json:"size"`
	Direction uint8                        `json:"direction"`
	Entries   datatypes.JSONSlice[EntryRow] `json:"entries"`
}

func (*Formation) TableName() string {
	return "formations"
}

// EntryRow is one element of Formation.Entries
type EntryRow struct {
	Car     uint32 `json:"car"`
	EntryID int    `json:"entryId"`
	Dir     uint8  `json:"dir"`
}

////////////////////////
// CARS
////////////////////////

// Car is a persisted car. Formation membership is not stored here; it is
// rebuilt from the formation rows on load.
type Car struct {
	ID        uint32         `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Control   bool           `json:"control"`
	Notch     int            `json:"notch"`
	Speed     float32        `json:"speed"`
	Direction uint8          `json:"direction"`
	Position  float64        `json:"position"`
	Length    float64        `json:"length"`
	States    datatypes.JSON `json:"states"` // channel id -> byte
}

func (*Car) TableName() string {
	return "cars"
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// FlushRun records one write cycle of the storage writer
type FlushRun struct {
	ID                uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time              time.Time `json:"time" gorm:"index:idx_flushrun_time"`
	FormationsSaved   int       `json:"formationsSaved"`
	FormationsDeleted int       `json:"formationsDeleted"`
	CarsSaved         int       `json:"carsSaved"`
	CarsDeleted       int       `json:"carsDeleted"`
	DurationMs        float32   `json:"durationMs"`
}

func (*FlushRun) TableName() string {
	return "flush_runs"
}
