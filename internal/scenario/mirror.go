package scenario

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/go-cmp/cmp"

	"github.com/railsim/formation/internal/formation"
	"github.com/railsim/formation/internal/vehicle"
	"github.com/railsim/formation/pkg/core"
	"github.com/railsim/formation/pkg/streaming"
)

// Mirror rebuilds formations from broadcast snapshots alone, the way a
// remote observer would. Comparing it with the live state checks that every
// structural change was broadcast.
type Mirror struct {
	mu      sync.Mutex
	manager *formation.Manager
	cars    map[core.CarID]*vehicle.Car
	updates int
	errs    []error
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		manager: formation.NewManager(nil, nil),
		cars:    make(map[core.CarID]*vehicle.Car),
	}
}

func (m *Mirror) car(id core.CarID) *vehicle.Car {
	c, ok := m.cars[id]
	if !ok {
		c = vehicle.New(id, false)
		m.cars[id] = c
	}
	return c
}

// FormationChanged merges rec into the mirrored formation. A formation whose
// size changed, or whose snapshot leaves slots empty, is rebuilt.
func (m *Mirror) FormationChanged(rec core.FormationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++

	f, ok := m.manager.Get(rec.ID)
	if !ok || f.Size() != rec.Size || len(rec.Entries) < rec.Size {
		f = m.manager.NewFormation(rec.ID, rec.Size)
	}
	for _, e := range rec.Entries {
		if err := f.ApplyEntry(m.car(e.Car), e.EntryID, e.Dir); err != nil {
			m.errs = append(m.errs, fmt.Errorf("snapshot %d: %w", rec.ID, err))
		}
	}
}

// FormationRemoved forgets the mirrored formation.
func (m *Mirror) FormationRemoved(id core.FormationID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.manager.Remove(id)
}

// CarChanged is ignored; the mirror tracks structure only.
func (m *Mirror) CarChanged(streaming.CarStatePayload) {}

// Updates returns how many notifications were applied.
func (m *Mirror) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

// Records returns the mirrored formations ordered by id. Direction is not
// carried by ApplyEntry and is left at its zero value.
func (m *Mirror) Records() []core.FormationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	fs := m.manager.Formations()
	out := make([]core.FormationRecord, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Record(true))
	}
	return out
}

// Compare returns an error describing how the mirror differs from live,
// joined with every snapshot the mirror failed to apply.
func (m *Mirror) Compare(live []core.FormationRecord) error {
	m.mu.Lock()
	applyErrs := slices.Clone(m.errs)
	m.mu.Unlock()
	var errs []error
	for _, err := range applyErrs {
		errs = append(errs, fmt.Errorf("%w: %w", ErrExpectation, err))
	}

	want := make([]core.FormationRecord, len(live))
	for i, rec := range live {
		rec.Direction = 0
		want[i] = rec
	}
	if diff := cmp.Diff(want, m.Records()); diff != "" {
		errs = append(errs, fmt.Errorf("%w: mirror differs from live state (-live +mirror):\n%s", ErrExpectation, diff))
	}
	return errors.Join(errs...)
}
