package formation

import (
	"log/slog"
	"sort"

	"github.com/railsim/formation/pkg/core"
)

// Broadcaster receives formation snapshots after every externally visible
// structural change. Implementations must not call back into the Manager.
type Broadcaster interface {
	FormationChanged(rec core.FormationRecord)
	FormationRemoved(id core.FormationID)
}

// NopBroadcaster discards every notification.
type NopBroadcaster struct{}

func (NopBroadcaster) FormationChanged(core.FormationRecord) {}
func (NopBroadcaster) FormationRemoved(core.FormationID)     {}

// Manager is the registry of live formations. It is owned by one simulation
// and is not safe for concurrent use; callers serialize access.
type Manager struct {
	formations  map[core.FormationID]*Formation
	retired     map[core.FormationID]struct{}
	lastID      core.FormationID
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewManager creates an empty registry. A nil broadcaster or logger is replaced
// by a no-op implementation.
func NewManager(b Broadcaster, logger *slog.Logger) *Manager {
	if b == nil {
		b = NopBroadcaster{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		formations:  make(map[core.FormationID]*Formation),
		retired:     make(map[core.FormationID]struct{}),
		broadcaster: b,
		logger:      logger,
	}
}

// Set registers f under id, replacing any formation already stored there.
// Retirement is permanent; Set does not clear it.
func (m *Manager) Set(id core.FormationID, f *Formation) {
	m.formations[id] = f
	if id > m.lastID {
		m.lastID = id
	}
}

// Get returns the live formation with the given id.
func (m *Manager) Get(id core.FormationID) (*Formation, bool) {
	f, ok := m.formations[id]
	return f, ok
}

// Remove deregisters id and retires it. Removing an absent id is a no-op.
func (m *Manager) Remove(id core.FormationID) {
	if _, ok := m.formations[id]; !ok {
		return
	}
	delete(m.formations, id)
	m.retired[id] = struct{}{}
	m.logger.Debug("Formation removed", "formationId", id)
	m.broadcaster.FormationRemoved(id)
}

// NewID returns an id strictly greater than every id this manager has issued
// or registered.
func (m *Manager) NewID() core.FormationID {
	m.lastID++
	return m.lastID
}

// LastID returns the highest id issued or registered so far.
func (m *Manager) LastID() core.FormationID {
	return m.lastID
}

// Retired reports whether id belonged to a formation that has since been
// dissolved or absorbed.
func (m *Manager) Retired(id core.FormationID) bool {
	_, ok := m.retired[id]
	return ok
}

// Len returns the number of live formations.
func (m *Manager) Len() int {
	return len(m.formations)
}

// Formations returns the live formations ordered by id.
func (m *Manager) Formations() []*Formation {
	out := make([]*Formation, 0, len(m.formations))
	for _, f := range m.formations {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// FindByCar returns the live formation holding the car with the given id.
func (m *Manager) FindByCar(id core.CarID) (*Formation, bool) {
	for _, f := range m.formations {
		if f.indexOfID(id) >= 0 {
			return f, true
		}
	}
	return nil, false
}

// NewFormation allocates a formation of size empty slots and registers it.
func (m *Manager) NewFormation(id core.FormationID, size int) *Formation {
	f := &Formation{
		id:      id,
		entries: make([]*Entry, size),
		manager: m,
	}
	m.Set(id, f)
	return f
}
