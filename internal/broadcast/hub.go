// Package broadcast fans formation snapshots out to connected observers.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/railsim/formation/pkg/core"
	"github.com/railsim/formation/pkg/streaming"
)

// DefaultOutboxSize is the per-observer buffer used when none is given.
const DefaultOutboxSize = 256

const instrumentationName = "github.com/railsim/formation/internal/broadcast"

// Subscription is one observer's view of the hub. Messages arrive on C in
// send order; C is closed when the observer leaves or is dropped.
type Subscription struct {
	ID uuid.UUID
	C  <-chan []byte
}

// Hub keeps the latest snapshot of every formation and forwards each change
// to all observers. A joining observer first receives the full state. An
// observer whose outbox is full is dropped rather than skipped, so every
// observer that stays connected sees every message in order.
type Hub struct {
	mu         sync.Mutex
	snapshots  map[core.FormationID]core.FormationRecord
	observers  map[uuid.UUID]chan []byte
	outboxSize int
	log        *slog.Logger

	sent    metric.Int64Counter
	dropped metric.Int64Counter
}

// NewHub creates a hub. A non-positive outboxSize selects DefaultOutboxSize.
func NewHub(outboxSize int, logger *slog.Logger) (*Hub, error) {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Hub{
		snapshots:  make(map[core.FormationID]core.FormationRecord),
		observers:  make(map[uuid.UUID]chan []byte),
		outboxSize: outboxSize,
		log:        logger,
	}

	m := otel.Meter(instrumentationName)
	var err error
	h.sent, err = m.Int64Counter(
		"broadcast.messages.sent",
		metric.WithDescription("Messages queued to observers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sent counter: %w", err)
	}
	h.dropped, err = m.Int64Counter(
		"broadcast.observers.dropped",
		metric.WithDescription("Observers dropped for a full outbox"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return h, nil
}

// Join registers an observer and queues the current state as its first
// message.
func (h *Hub) Join() (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := streaming.Marshal(streaming.TypeFormationSync, streaming.FormationSyncPayload{
		Formations: h.snapshotsLocked(),
	})
	if err != nil {
		return Subscription{}, err
	}

	id := uuid.New()
	out := make(chan []byte, h.outboxSize)
	out <- data
	h.observers[id] = out
	h.log.Debug("Observer joined", "observer", id, "observers", len(h.observers))
	return Subscription{ID: id, C: out}, nil
}

// Leave unregisters an observer; unknown ids are ignored.
func (h *Hub) Leave(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if out, ok := h.observers[id]; ok {
		delete(h.observers, id)
		close(out)
		h.log.Debug("Observer left", "observer", id, "observers", len(h.observers))
	}
}

// Observers returns how many observers are connected.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Snapshots returns the latest record of every formation ordered by id.
func (h *Hub) Snapshots() []core.FormationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotsLocked()
}

func (h *Hub) snapshotsLocked() []core.FormationRecord {
	out := make([]core.FormationRecord, 0, len(h.snapshots))
	for _, id := range slices.Sorted(maps.Keys(h.snapshots)) {
		out = append(out, h.snapshots[id])
	}
	return out
}

// FormationChanged stores rec and forwards it.
func (h *Hub) FormationChanged(rec core.FormationRecord) {
	rec.Entries = slices.Clone(rec.Entries)
	h.publish(streaming.TypeFormationSnapshot, rec, func() {
		h.snapshots[rec.ID] = rec
	})
}

// FormationRemoved forgets the formation and forwards the removal.
func (h *Hub) FormationRemoved(id core.FormationID) {
	h.publish(streaming.TypeFormationRemoved, streaming.FormationRemovedPayload{ID: id}, func() {
		delete(h.snapshots, id)
	})
}

// CarChanged forwards synced car state.
func (h *Hub) CarChanged(p streaming.CarStatePayload) {
	h.publish(streaming.TypeCarState, p, nil)
}

func (h *Hub) publish(msgType string, payload any, update func()) {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		h.log.Error("Failed to encode broadcast", "type", msgType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if update != nil {
		update()
	}
	ctx := context.Background()
	for id, out := range h.observers {
		select {
		case out <- data:
			h.sent.Add(ctx, 1)
		default:
			delete(h.observers, id)
			close(out)
			h.dropped.Add(ctx, 1)
			h.log.Warn("Dropping slow observer", "observer", id, "type", msgType)
		}
	}
}
