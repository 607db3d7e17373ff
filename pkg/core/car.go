// pkg/core/car.go
package core

// BogieSide selects one of the two bogie mounts of a car.
type BogieSide int

const (
	BogieFront BogieSide = 0
	BogieBack  BogieSide = 1
)

// Bogie is a car's wheel-truck mount. Bogies are compared by identity.
type Bogie struct {
	Car  CarID
	Side BogieSide
}

// Car is the vehicle contract the formation core drives.
//
// Synced setters update authoritative state and mark it for network sync; the
// NoSync variants only update state and are used for formation-wide batch updates.
type Car interface {
	ID() CarID

	Notch() int
	SetNotch(notch int)

	Speed() float32
	SetSpeed(speed float32)
	SetSpeedNoSync(speed float32)

	TrainDirection() Orientation
	SetTrainDirection(dir Orientation)
	SetTrainDirectionNoSync(dir Orientation)

	State(ch StateChannel) byte
	SetState(ch StateChannel, data byte)
	SetStateNoSync(ch StateChannel, data byte)

	IsControlCar() bool
	Bogie(side BogieSide) *Bogie

	// SetMembership is called after every reallocation the car takes part in.
	SetMembership(m Membership)

	// Move advances the car for one tick. leader is the car ahead of it in
	// movement order, or nil for the head car.
	Move(leader Car, targetSpeed float32)
}
