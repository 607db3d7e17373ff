package streaming

import (
	"encoding/json"
	"testing"

	"github.com/railsim/formation/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalEnvelope(t *testing.T) {
	data, err := Marshal(TypeFormationRemoved, FormationRemovedPayload{ID: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"formation_removed","payload":{"id":7}}`, string(data))

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	var got FormationRemovedPayload
	require.NoError(t, Decode(env, &got))
	assert.Equal(t, core.FormationID(7), got.ID)
}

func TestMarshalNilPayload(t *testing.T) {
	data, err := Marshal(TypeFlush, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"flush"}`, string(data))

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Error(t, Decode(env, &FormationRemovedPayload{}))
}

func TestCarStateOmitsUnchanged(t *testing.T) {
	notch := 3
	data, err := json.Marshal(CarStatePayload{Car: 2, Notch: &notch})
	require.NoError(t, err)
	assert.JSONEq(t, `{"car":2,"notch":3}`, string(data))
}

func TestMarshalUnsupportedPayload(t *testing.T) {
	_, err := Marshal(TypeSaveCar, make(chan int))
	assert.Error(t, err)
}
