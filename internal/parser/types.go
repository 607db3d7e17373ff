package parser

import "github.com/railsim/formation/pkg/core"

// SpawnRequest is parsed from ":CAR:SPAWN: <car> <control>".
type SpawnRequest struct {
	Car     core.CarID
	Control bool
}

// RemoveRequest is parsed from ":CAR:REMOVE: <car>".
type RemoveRequest struct {
	Car core.CarID
}

// CoupleRequest is parsed from ":COUPLE: <carA> <carB> <dirA> <dirB>".
// DirA and DirB name the coupler side used on each car.
type CoupleRequest struct {
	A, B       core.CarID
	DirA, DirB core.Orientation
}

// UncoupleRequest is parsed from ":UNCOUPLE: <car> <side>".
type UncoupleRequest struct {
	Car  core.CarID
	Side core.CouplerSide
}

// StateRequest is parsed from ":STATE: <car> <channel> <data>".
type StateRequest struct {
	Car     core.CarID
	Channel core.StateChannel
	Data    byte
}

// DirectionRequest is parsed from ":DIRECTION: <car> <dir>".
type DirectionRequest struct {
	Car core.CarID
	Dir core.Orientation
}

// NotchRequest is parsed from ":NOTCH: <car> <notch>".
type NotchRequest struct {
	Car   core.CarID
	Notch int
}

// TickRequest is parsed from ":TICK: [n]".
type TickRequest struct {
	N int
}
