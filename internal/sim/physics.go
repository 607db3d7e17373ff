package sim

import "github.com/railsim/formation/pkg/core"

// MaxNotch is the highest power notch.
const MaxNotch = 5

// Speed changes per tick, in track units per tick.
const (
	MaxSpeed             float32 = 3.0
	AccelerationPerNotch float32 = 0.005
	BrakePerNotch        float32 = 0.01
	EmergencyBrake       float32 = 0.1
	Coasting             float32 = 0.0005
)

// NextSpeed integrates one tick of the control car's notch. Speed is a
// magnitude; the formation's direction decides which way the cars move.
func NextSpeed(speed float32, notch int) float32 {
	switch {
	case notch <= core.EmergencyBrakeNotch:
		speed -= EmergencyBrake
	case notch > 0:
		speed += float32(notch) * AccelerationPerNotch
	case notch < 0:
		speed += float32(notch) * BrakePerNotch
	default:
		speed -= Coasting
	}
	return max(0, min(speed, MaxSpeed))
}
