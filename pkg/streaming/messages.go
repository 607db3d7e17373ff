// Package streaming defines the JSON wire format shared by formation
// observers and remote storage sinks.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/railsim/formation/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	// server -> observer
	TypeFormationSnapshot = "formation_snapshot"
	TypeFormationRemoved  = "formation_removed"
	TypeFormationSync     = "formation_sync"
	TypeCarState          = "car_state"

	// sink -> remote storage
	TypeSaveFormation   = "save_formation"
	TypeDeleteFormation = "delete_formation"
	TypeSaveCar         = "save_car"
	TypeDeleteCar       = "delete_car"
	TypeFlush           = "flush"

	TypeAck = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// FormationRemovedPayload names a formation that no longer exists.
type FormationRemovedPayload struct {
	ID core.FormationID `json:"id"`
}

// FormationSyncPayload is the full state sent to an observer on join.
type FormationSyncPayload struct {
	Formations []core.FormationRecord `json:"formations"`
}

// DeleteCarPayload names a car that left the simulation.
type DeleteCarPayload struct {
	ID core.CarID `json:"id"`
}

// CarStatePayload carries the fields of a car changed through synced setters.
// Only the fields that changed are set.
type CarStatePayload struct {
	Car       core.CarID                 `json:"car"`
	Notch     *int                       `json:"notch,omitempty"`
	Speed     *float32                   `json:"speed,omitempty"`
	Direction *core.Orientation          `json:"direction,omitempty"`
	States    map[core.StateChannel]byte `json:"states,omitempty"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
// A nil payload produces an envelope without one.
func Marshal(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode unmarshals the payload of env into v.
func Decode(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}
