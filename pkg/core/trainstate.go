// pkg/core/trainstate.go
package core

import (
	"fmt"
	"strings"
)

// StateChannel identifies one per-car state value. Each channel carries one byte.
// The set is closed; the formation core interprets Direction and Door and passes
// every other channel through unchanged.
type StateChannel uint8

const (
	ChannelTrainDir      StateChannel = 0
	ChannelNotch         StateChannel = 1
	ChannelSignal        StateChannel = 2
	ChannelDoor          StateChannel = 4
	ChannelLight         StateChannel = 5
	ChannelPantograph    StateChannel = 6
	ChannelChunkLoader   StateChannel = 7
	ChannelDestination   StateChannel = 8
	ChannelAnnouncement  StateChannel = 9
	ChannelDirection     StateChannel = 10
	ChannelInteriorLight StateChannel = 11
)

var channelNames = map[StateChannel]string{
	ChannelTrainDir:      "train_dir",
	ChannelNotch:         "notch",
	ChannelSignal:        "signal",
	ChannelDoor:          "door",
	ChannelLight:         "light",
	ChannelPantograph:    "pantograph",
	ChannelChunkLoader:   "chunk_loader",
	ChannelDestination:   "destination",
	ChannelAnnouncement:  "announcement",
	ChannelDirection:     "direction",
	ChannelInteriorLight: "interior_light",
}

// StateChannels lists every channel in id order.
var StateChannels = []StateChannel{
	ChannelTrainDir,
	ChannelNotch,
	ChannelSignal,
	ChannelDoor,
	ChannelLight,
	ChannelPantograph,
	ChannelChunkLoader,
	ChannelDestination,
	ChannelAnnouncement,
	ChannelDirection,
	ChannelInteriorLight,
}

// Valid reports whether c belongs to the closed channel set.
func (c StateChannel) Valid() bool {
	_, ok := channelNames[c]
	return ok
}

func (c StateChannel) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("channel(%d)", uint8(c))
}

// ParseStateChannel resolves a channel by name (case-insensitive).
func ParseStateChannel(name string) (StateChannel, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for c, cn := range channelNames {
		if cn == n {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown state channel %q", name)
}

// Direction channel sentinels.
const (
	DirectionFront  byte = 0
	DirectionCenter byte = 1
	DirectionBack   byte = 2
)

// IsDrivingDirection reports whether data is the front or back sentinel, i.e. a
// driver has selected a direction rather than neutral.
func IsDrivingDirection(data byte) bool {
	return data == DirectionFront || data == DirectionBack
}

// DoorState packs the door channel: bit 0 is "right side open", bit 1 is "left side open".
type DoorState byte

const (
	DoorClosed DoorState = 0
	DoorRight  DoorState = 1
	DoorLeft   DoorState = 2
	DoorBoth   DoorState = 3
)

// NewDoorState builds a door value from the two side flags.
func NewDoorState(right, left bool) DoorState {
	var d DoorState
	if right {
		d |= DoorRight
	}
	if left {
		d |= DoorLeft
	}
	return d
}

// Right reports whether the right-side doors are open.
func (d DoorState) Right() bool { return d&DoorRight != 0 }

// Left reports whether the left-side doors are open.
func (d DoorState) Left() bool { return d&DoorLeft != 0 }

// Mirror swaps the two sides. A car running backwards relative to its formation
// sees the formation's right side on its own left.
func (d DoorState) Mirror() DoorState {
	return NewDoorState(d.Left(), d.Right())
}

// EmergencyBrakeNotch is the notch forced onto every car after a coupling.
const EmergencyBrakeNotch = -8
