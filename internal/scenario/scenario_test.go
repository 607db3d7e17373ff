package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/internal/dispatcher"
	"github.com/railsim/formation/internal/logging"
	"github.com/railsim/formation/internal/sim"
	"github.com/railsim/formation/internal/worker"
	"github.com/railsim/formation/pkg/core"
)

const coupleYAML = `
name: couple three
steps:
  - line: ":CAR:SPAWN: 1 1"
  - line: ":CAR:SPAWN: 2 0"
  - command: ":CAR:SPAWN:"
    args: ["3", "0"]
  - line: ":COUPLE: 1 2 reverse forward"
  - line: ":COUPLE: 2 3 reverse forward"
  - line: ":CAR:SPAWN: 3 0"
    fails: true
expect:
  formations: 1
  cars: 3
  trains:
    - [1, 2, 3]
`

func newRig(t *testing.T, observer sim.Observer) (*dispatcher.Dispatcher, *sim.Simulation) {
	t.Helper()
	s, err := sim.New(sim.Dependencies{Observer: observer}, sim.Options{})
	require.NoError(t, err)
	d, err := dispatcher.New(logging.NewDispatcherLogger(nil))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	worker.NewManager(worker.Dependencies{Sim: s}).RegisterHandlers(d)
	return d, s
}

func intp(n int) *int { return &n }

func TestParseYAML(t *testing.T) {
	s, err := ParseYAML(strings.NewReader(coupleYAML))
	require.NoError(t, err)

	assert.Equal(t, "couple three", s.Name)
	require.Len(t, s.Steps, 6)
	assert.True(t, s.Steps[5].Fails)
	assert.Equal(t, 1, *s.Expect.Formations)
	assert.Equal(t, [][]core.CarID{{1, 2, 3}}, s.Expect.Trains)

	e, err := s.Steps[2].Event()
	require.NoError(t, err)
	assert.Equal(t, dispatcher.Event{Command: ":CAR:SPAWN:", Args: []string{"3", "0"}}, e)
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML(strings.NewReader("steps:\n  - cmd: x\n"))
	assert.Error(t, err)
}

func TestParseLines(t *testing.T) {
	s, err := ParseLines(strings.NewReader("# depot\n\n:CAR:SPAWN: 1 1\n  :TICK: 3\n"))
	require.NoError(t, err)
	require.Len(t, s.Steps, 2)

	e, err := s.Steps[1].Event()
	require.NoError(t, err)
	assert.Equal(t, ":TICK:", e.Command)
	assert.Equal(t, []string{"3"}, e.Args)

	_, err = ParseLines(strings.NewReader(":STATE: 1 \"open\n"))
	assert.Error(t, err)
}

func TestStepEvent_Empty(t *testing.T) {
	_, err := Step{}.Event()
	assert.Error(t, err)
	_, err = Step{Line: "# nothing"}.Event()
	assert.Error(t, err)
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "couple.yaml")
	txtPath := filepath.Join(dir, "depot.txt")
	jsonPath := filepath.Join(dir, "tick.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte(coupleYAML), 0o644))
	require.NoError(t, os.WriteFile(txtPath, []byte(":CAR:SPAWN: 1 1\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"steps":[{"command":":TICK:"}]}`), 0o644))

	s, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "couple three", s.Name)

	s, err = Load(txtPath)
	require.NoError(t, err)
	assert.Equal(t, "depot", s.Name)
	assert.Len(t, s.Steps, 1)

	s, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "tick", s.Name)
	assert.Equal(t, ":TICK:", s.Steps[0].Command)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRunAndVerify(t *testing.T) {
	mirror := NewMirror()
	d, s := newRig(t, mirror)
	script, err := ParseYAML(strings.NewReader(coupleYAML))
	require.NoError(t, err)

	results, err := Run(d, script)
	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.Error(t, results[5].Err)
	assert.ErrorIs(t, results[5].Err, sim.ErrCarExists)

	require.NoError(t, Verify(s, script.Expect))
	require.NoError(t, mirror.Compare(s.Formations()))
	assert.Positive(t, mirror.Updates())
}

func TestRun_StopsOnUnexpectedError(t *testing.T) {
	d, _ := newRig(t, nil)
	script := &Script{Steps: []Step{
		{Line: ":CAR:SPAWN: 1 1"},
		{Line: ":NOTCH: 9 1"},
		{Line: ":TICK:"},
	}}

	results, err := Run(d, script)
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrUnknownCar)
	assert.Contains(t, err.Error(), "step 2")
	assert.Len(t, results, 2)
}

func TestRun_ExpectedFailureSucceeded(t *testing.T) {
	d, _ := newRig(t, nil)
	script := &Script{Steps: []Step{{Line: ":CAR:SPAWN: 1 1", Fails: true}}}

	_, err := Run(d, script)
	assert.ErrorIs(t, err, ErrExpectation)
}

func TestRun_UnknownCommand(t *testing.T) {
	d, _ := newRig(t, nil)
	_, err := Run(d, &Script{Steps: []Step{{Command: ":HORN:"}}})
	assert.True(t, errors.Is(err, dispatcher.ErrUnknownCommand))
}

func TestVerify_ReportsEveryMismatch(t *testing.T) {
	d, s := newRig(t, nil)
	_, err := Run(d, &Script{Steps: []Step{
		{Line: ":CAR:SPAWN: 1 1"},
		{Line: ":CAR:SPAWN: 2 0"},
	}})
	require.NoError(t, err)

	err = Verify(s, Expect{
		Formations: intp(1),
		Cars:       intp(3),
		Trains:     [][]core.CarID{{1, 2}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpectation)
	msg := err.Error()
	assert.Contains(t, msg, "2 formations, want 1")
	assert.Contains(t, msg, "2 cars, want 3")
	assert.Contains(t, msg, "trains")

	assert.NoError(t, Verify(s, Expect{Formations: intp(2), Trains: [][]core.CarID{}}))
}
