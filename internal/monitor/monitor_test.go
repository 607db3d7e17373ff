package monitor

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/internal/influx"
	"github.com/railsim/formation/internal/sim"
	gormstorage "github.com/railsim/formation/internal/storage/gorm"
	"github.com/railsim/formation/pkg/core"
)

type recordingWriter struct {
	mu     sync.Mutex
	points []*influxdb2_write.Point
	err    error
}

func (w *recordingWriter) WritePoint(p *influxdb2_write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, p)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.points)
}

type fakeStorage struct{}

func (fakeStorage) QueuedWrites() int { return 4 }

func (fakeStorage) LastFlush() gormstorage.FlushStats {
	return gormstorage.FlushStats{
		Time:            time.Unix(50, 0),
		FormationsSaved: 2,
		CarsDeleted:     1,
		Duration:        3 * time.Millisecond,
	}
}

type fixedObservers int

func (n fixedObservers) Observers() int { return int(n) }

func newSim(t *testing.T) *sim.Simulation {
	t.Helper()
	s, err := sim.New(sim.Dependencies{}, sim.Options{})
	require.NoError(t, err)
	_, err = s.Spawn(1, true)
	require.NoError(t, err)
	_, err = s.Spawn(2, false)
	require.NoError(t, err)
	_, err = s.Couple(1, 2, core.Reverse, core.Forward)
	require.NoError(t, err)
	_, err = s.Spawn(3, false)
	require.NoError(t, err)
	return s
}

func TestGetStatus(t *testing.T) {
	svc := NewService(Dependencies{
		Sim:       newSim(t),
		Storage:   fakeStorage{},
		Observers: fixedObservers(2),
	})

	r := svc.GetStatus()
	assert.Equal(t, 2, r.Formations)
	assert.Equal(t, 3, r.Cars)
	assert.Equal(t, 2, r.Observers)
	require.NotNil(t, r.Storage)
	assert.Equal(t, 4, r.Storage.QueuedWrites)
	assert.Equal(t, 2, r.Storage.FormationsSaved)
	assert.InDelta(t, 3.0, r.Storage.LastFlushMs, 1e-9)
}

func TestGetStatus_PlainBackend(t *testing.T) {
	svc := NewService(Dependencies{Sim: newSim(t), Storage: struct{}{}})
	assert.Nil(t, svc.GetStatus().Storage)
}

func TestReport_WritesFileAndTelemetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	w := &recordingWriter{}
	svc := NewService(Dependencies{Sim: newSim(t), StatusPath: path, Telemetry: w})

	_, err := svc.Report()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.EqualValues(t, 2, got["formations"])
	assert.NotContains(t, got, "storage")

	// one status point plus one per formation
	require.Len(t, w.points, 3)
	assert.Equal(t, influx.MeasurementStatus, w.points[0].Name())
	assert.Equal(t, influx.MeasurementFormation, w.points[1].Name())
}

func TestReport_TelemetryError(t *testing.T) {
	w := &recordingWriter{err: errors.New("down")}
	svc := NewService(Dependencies{Sim: newSim(t), Telemetry: w})

	_, err := svc.Report()
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	w := &recordingWriter{}
	svc := NewService(Dependencies{Sim: newSim(t), Telemetry: w, Interval: 5 * time.Millisecond})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	require.Eventually(t, func() bool { return w.count() >= 6 }, 2*time.Second, 5*time.Millisecond)

	svc.Stop()
	svc.Stop()
	assert.False(t, svc.IsRunning())
}
