// pkg/core/ids.go
package core

import "fmt"

// FormationID identifies a formation. Zero means "no formation"; issued ids start at 1.
type FormationID uint64

// CarID identifies a car for the lifetime of the simulation. It is the
// reference stored in persisted formation records.
type CarID uint32

// Orientation is a single direction bit.
// For a formation it is the formation-level orientation; for an entry it is the
// car's own orientation relative to the formation.
type Orientation uint8

const (
	Forward Orientation = 0
	Reverse Orientation = 1
)

// Valid reports whether o is 0 or 1.
func (o Orientation) Valid() bool {
	return o <= Reverse
}

// Flip negates the lowest bit.
func (o Orientation) Flip() Orientation {
	return o ^ 1
}

// Xor combines two direction bits.
func (o Orientation) Xor(other Orientation) Orientation {
	return (o ^ other) & 1
}

func (o Orientation) String() string {
	switch o {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return fmt.Sprintf("orientation(%d)", uint8(o))
	}
}

// CouplerSide names one of a car's two couplers in car-local terms.
// It is compared against an entry's direction bit: when they are equal the cut is
// on the side facing the head of the formation.
type CouplerSide uint8

const (
	CouplerFront CouplerSide = 0
	CouplerBack  CouplerSide = 1
)

// Valid reports whether s is CouplerFront or CouplerBack.
func (s CouplerSide) Valid() bool {
	return s <= CouplerBack
}

// Orientation returns the side as a direction bit.
func (s CouplerSide) Orientation() Orientation {
	return Orientation(s)
}

// Membership is what a car knows about the formation it belongs to.
// The zero value means the car is not part of any formation.
type Membership struct {
	Formation FormationID
	EntryID   int
	Dir       Orientation
}

// InFormation reports whether m refers to a formation.
func (m Membership) InFormation() bool {
	return m.Formation != 0
}
