// Package websocket implements a write-only storage.Backend that streams
// formation and car records to a remote server.
package websocket

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/railsim/formation/internal/storage"
	"github.com/railsim/formation/pkg/core"
	"github.com/railsim/formation/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams records over WebSocket. It keeps the last record sent for
// every live key so a reconnect can restore the remote state. It implements
// storage.Backend and storage.Flusher but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config

	mu         sync.Mutex
	formations map[core.FormationID][]byte
	cars       map[core.CarID][]byte
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Flusher = (*Backend)(nil)
)

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		conn:       newConnection(logger),
		cfg:        cfg,
		formations: make(map[core.FormationID][]byte),
		cars:       make(map[core.CarID][]byte),
	}
	b.conn.replay = b.replay
	return b
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

func (b *Backend) SaveFormation(rec *core.FormationRecord) error {
	data, err := streaming.Marshal(streaming.TypeSaveFormation, rec)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.formations[rec.ID] = data
	b.mu.Unlock()
	b.conn.send(data)
	return nil
}

func (b *Backend) DeleteFormation(id core.FormationID) error {
	data, err := streaming.Marshal(streaming.TypeDeleteFormation, streaming.FormationRemovedPayload{ID: id})
	if err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.formations, id)
	b.mu.Unlock()
	b.conn.send(data)
	return nil
}

func (b *Backend) SaveCar(rec *core.CarRecord) error {
	data, err := streaming.Marshal(streaming.TypeSaveCar, rec)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.cars[rec.ID] = data
	b.mu.Unlock()
	b.conn.send(data)
	return nil
}

func (b *Backend) DeleteCar(id core.CarID) error {
	data, err := streaming.Marshal(streaming.TypeDeleteCar, streaming.DeleteCarPayload{ID: id})
	if err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.cars, id)
	b.mu.Unlock()
	b.conn.send(data)
	return nil
}

// Flush sends a flush marker and waits for the server to acknowledge it,
// which means every earlier message has been received.
func (b *Backend) Flush() error {
	data, err := streaming.Marshal(streaming.TypeFlush, nil)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, streaming.TypeFlush, ackTimeout)
}

// Load is not supported by a write-only sink.
func (b *Backend) Load() (*storage.Snapshot, error) {
	return nil, fmt.Errorf("websocket sink: %w", storage.ErrUnsupported)
}

// replay returns the last save message of every live formation and car,
// cars first so formations reference known cars.
func (b *Backend) replay() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := make([][]byte, 0, len(b.cars)+len(b.formations))
	for _, id := range slices.Sorted(maps.Keys(b.cars)) {
		msgs = append(msgs, b.cars[id])
	}
	for _, id := range slices.Sorted(maps.Keys(b.formations)) {
		msgs = append(msgs, b.formations[id])
	}
	return msgs
}
