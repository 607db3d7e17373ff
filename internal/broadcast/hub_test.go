package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/pkg/core"
	"github.com/railsim/formation/pkg/streaming"
)

func newTestHub(t *testing.T, size int) *Hub {
	t.Helper()
	h, err := NewHub(size, nil)
	require.NoError(t, err)
	return h
}

func recv(t *testing.T, sub Subscription) streaming.Envelope {
	t.Helper()
	select {
	case data, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		var env streaming.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	default:
		t.Fatal("no message queued")
		return streaming.Envelope{}
	}
}

func TestJoinReceivesSync(t *testing.T) {
	h := newTestHub(t, 0)
	h.FormationChanged(core.FormationRecord{ID: 2, Size: 1, Entries: []core.EntryRecord{{Car: 5}}})
	h.FormationChanged(core.FormationRecord{ID: 1, Size: 1, Entries: []core.EntryRecord{{Car: 4}}})

	sub, err := h.Join()
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sub.ID)

	env := recv(t, sub)
	assert.Equal(t, streaming.TypeFormationSync, env.Type)
	var sync streaming.FormationSyncPayload
	require.NoError(t, streaming.Decode(env, &sync))
	require.Len(t, sync.Formations, 2)
	assert.Equal(t, core.FormationID(1), sync.Formations[0].ID)
}

func TestBroadcastOrder(t *testing.T) {
	h := newTestHub(t, 0)
	sub, err := h.Join()
	require.NoError(t, err)
	recv(t, sub)

	h.FormationChanged(core.FormationRecord{ID: 1, Size: 2})
	h.FormationRemoved(3)
	h.CarChanged(streaming.CarStatePayload{Car: 9})

	assert.Equal(t, streaming.TypeFormationSnapshot, recv(t, sub).Type)
	env := recv(t, sub)
	assert.Equal(t, streaming.TypeFormationRemoved, env.Type)
	var removed streaming.FormationRemovedPayload
	require.NoError(t, streaming.Decode(env, &removed))
	assert.Equal(t, core.FormationID(3), removed.ID)
	assert.Equal(t, streaming.TypeCarState, recv(t, sub).Type)
}

func TestRemovedForgetsSnapshot(t *testing.T) {
	h := newTestHub(t, 0)
	h.FormationChanged(core.FormationRecord{ID: 1})
	h.FormationChanged(core.FormationRecord{ID: 2})
	h.FormationRemoved(1)

	snaps := h.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, core.FormationID(2), snaps[0].ID)
}

func TestSnapshotDoesNotAliasCaller(t *testing.T) {
	h := newTestHub(t, 0)
	rec := core.FormationRecord{ID: 1, Entries: []core.EntryRecord{{Car: 1}}}
	h.FormationChanged(rec)
	rec.Entries[0].Car = 42

	assert.Equal(t, core.CarID(1), h.Snapshots()[0].Entries[0].Car)
}

func TestSlowObserverDropped(t *testing.T) {
	h := newTestHub(t, 2)
	slow, err := h.Join()
	require.NoError(t, err)
	fast, err := h.Join()
	require.NoError(t, err)
	recv(t, fast)

	h.FormationChanged(core.FormationRecord{ID: 1})
	recv(t, fast)
	h.FormationChanged(core.FormationRecord{ID: 2})
	recv(t, fast)

	assert.Equal(t, 1, h.Observers())

	// the slow observer still drains what it had, then sees the close
	n := 0
	for range slow.C {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestLeave(t *testing.T) {
	h := newTestHub(t, 0)
	sub, err := h.Join()
	require.NoError(t, err)

	h.Leave(sub.ID)
	h.Leave(sub.ID)
	h.Leave(uuid.New())

	assert.Zero(t, h.Observers())
	<-sub.C
	_, ok := <-sub.C
	assert.False(t, ok)
}
