// Package scenario loads command scripts and replays them through the
// dispatcher.
package scenario

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/railsim/formation/internal/dispatcher"
	"github.com/railsim/formation/internal/util"
	"github.com/railsim/formation/pkg/core"
)

// ErrExpectation is wrapped by every failed expectation.
var ErrExpectation = errors.New("expectation not met")

// Step is one command of a script. Line, when set, is split like a stdin
// command line and takes precedence over Command and Args.
type Step struct {
	Line    string   `yaml:"line,omitempty" json:"line,omitempty"`
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
	// Fails marks a step whose command is expected to return an error.
	Fails bool `yaml:"fails,omitempty" json:"fails,omitempty"`
}

// Expect describes the state after the last step. Trains lists the car order
// of every formation with more than one car, in any order.
type Expect struct {
	Formations *int           `yaml:"formations,omitempty" json:"formations,omitempty"`
	Cars       *int           `yaml:"cars,omitempty" json:"cars,omitempty"`
	Trains     [][]core.CarID `yaml:"trains,omitempty" json:"trains,omitempty"`
}

// Script is a named sequence of steps.
type Script struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
	Expect      Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Event turns the step into a dispatcher event.
func (s Step) Event() (dispatcher.Event, error) {
	if s.Line == "" {
		if s.Command == "" {
			return dispatcher.Event{}, errors.New("step has neither line nor command")
		}
		return dispatcher.Event{Command: s.Command, Args: s.Args}, nil
	}
	cmd, args, err := util.SplitCommand(s.Line)
	if err != nil {
		return dispatcher.Event{}, err
	}
	if cmd == "" {
		return dispatcher.Event{}, fmt.Errorf("empty line %q", s.Line)
	}
	return dispatcher.Event{Command: cmd, Args: args}, nil
}

// Load reads a script by extension: .json, .txt and .cmd (one command per
// line) and YAML otherwise.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".cmd":
		s, err := ParseLines(f)
		if err != nil {
			return nil, err
		}
		s.Name = name
		return s, nil
	case ".json":
		var s Script
		if err := json.NewDecoder(f).Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if s.Name == "" {
			s.Name = name
		}
		return &s, nil
	default:
		s, err := ParseYAML(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if s.Name == "" {
			s.Name = name
		}
		return s, nil
	}
}

// ParseYAML decodes a YAML script. Unknown keys are rejected.
func ParseYAML(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, err
	}
	return &s, nil
}

// ParseLines reads one command per line. Blank lines and '#' comments are
// skipped.
func ParseLines(r io.Reader) (*Script, error) {
	var s Script
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		cmd, _, err := util.SplitCommand(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if cmd == "" {
			continue
		}
		s.Steps = append(s.Steps, Step{Line: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return &s, nil
}

// Dispatcher runs one event.
type Dispatcher interface {
	Dispatch(dispatcher.Event) (any, error)
}

// Result is the outcome of one dispatched step.
type Result struct {
	Step    int
	Command string
	Value   any
	Err     error
}

// Run dispatches every step in order and stops at the first step whose
// outcome differs from what it declares.
func Run(d Dispatcher, s *Script) ([]Result, error) {
	results := make([]Result, 0, len(s.Steps))
	for i, step := range s.Steps {
		e, err := step.Event()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		v, err := d.Dispatch(e)
		results = append(results, Result{Step: i + 1, Command: e.Command, Value: v, Err: err})
		switch {
		case err != nil && !step.Fails:
			return results, fmt.Errorf("step %d (%s): %w", i+1, e.Command, err)
		case err == nil && step.Fails:
			return results, fmt.Errorf("step %d (%s): %w: command succeeded", i+1, e.Command, ErrExpectation)
		}
	}
	return results, nil
}

// State is the read side checked by Verify.
type State interface {
	Formations() []core.FormationRecord
	Cars() []core.CarRecord
}

// Verify checks exp against the live state and reports every mismatch.
func Verify(state State, exp Expect) error {
	formations := state.Formations()
	var errs []error

	if exp.Formations != nil && len(formations) != *exp.Formations {
		errs = append(errs, fmt.Errorf("%w: %d formations, want %d", ErrExpectation, len(formations), *exp.Formations))
	}
	if exp.Cars != nil {
		if n := len(state.Cars()); n != *exp.Cars {
			errs = append(errs, fmt.Errorf("%w: %d cars, want %d", ErrExpectation, n, *exp.Cars))
		}
	}
	if exp.Trains != nil {
		got := trains(formations)
		want := make([]string, 0, len(exp.Trains))
		for _, t := range exp.Trains {
			want = append(want, trainKey(t))
		}
		slices.Sort(want)
		if !slices.Equal(got, want) {
			errs = append(errs, fmt.Errorf("%w: trains %v, want %v", ErrExpectation, got, want))
		}
	}
	return errors.Join(errs...)
}

// trains returns the sorted car orders of every multi-car formation.
func trains(formations []core.FormationRecord) []string {
	out := make([]string, 0, len(formations))
	for _, rec := range formations {
		if len(rec.Entries) < 2 {
			continue
		}
		ids := make([]core.CarID, len(rec.Entries))
		for i, e := range rec.Entries {
			ids[i] = e.Car
		}
		out = append(out, trainKey(ids))
	}
	slices.Sort(out)
	return out
}

func trainKey(ids []core.CarID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, "-")
}
