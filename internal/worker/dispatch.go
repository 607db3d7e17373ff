package worker

import (
	"fmt"

	"github.com/railsim/formation/internal/dispatcher"
)

// Command names understood by the worker.
const (
	CmdSpawn     = ":CAR:SPAWN:"
	CmdRemove    = ":CAR:REMOVE:"
	CmdCouple    = ":COUPLE:"
	CmdUncouple  = ":UNCOUPLE:"
	CmdState     = ":STATE:"
	CmdDirection = ":DIRECTION:"
	CmdNotch     = ":NOTCH:"
	CmdTick      = ":TICK:"
	CmdStatus    = ":STATUS:"
)

// RegisterHandlers registers all formation handlers with the dispatcher.
// Every handler runs synchronously: commands touching the same formation
// must apply in arrival order, and the simulation serializes them anyway.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Car lifecycle
	d.Register(CmdSpawn, m.handleSpawn, dispatcher.Logged())
	d.Register(CmdRemove, m.handleRemove, dispatcher.Logged())

	// Structural changes
	d.Register(CmdCouple, m.handleCouple, dispatcher.Logged())
	d.Register(CmdUncouple, m.handleUncouple, dispatcher.Logged())

	// Driver controls
	d.Register(CmdState, m.handleState, dispatcher.Logged())
	d.Register(CmdDirection, m.handleDirection, dispatcher.Logged())
	d.Register(CmdNotch, m.handleNotch, dispatcher.Logged())

	d.Register(CmdTick, m.handleTick, dispatcher.Logged())
	d.Register(CmdStatus, m.handleStatus)
}

func (m *Manager) handleSpawn(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseSpawn(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse spawn: %w", err)
	}
	return m.deps.Sim.Spawn(req.Car, req.Control)
}

func (m *Manager) handleRemove(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseRemove(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remove: %w", err)
	}
	return nil, m.deps.Sim.Remove(req.Car)
}

func (m *Manager) handleCouple(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseCouple(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse couple: %w", err)
	}
	return m.deps.Sim.Couple(req.A, req.B, req.DirA, req.DirB)
}

func (m *Manager) handleUncouple(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseUncouple(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse uncouple: %w", err)
	}
	return m.deps.Sim.Uncouple(req.Car, req.Side)
}

func (m *Manager) handleState(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseState(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	return nil, m.deps.Sim.State(req.Car, req.Channel, req.Data)
}

func (m *Manager) handleDirection(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseDirection(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse direction: %w", err)
	}
	return nil, m.deps.Sim.Direction(req.Car, req.Dir)
}

func (m *Manager) handleNotch(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseNotch(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notch: %w", err)
	}
	return nil, m.deps.Sim.Notch(req.Car, req.Notch)
}

func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseTick(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tick: %w", err)
	}
	m.deps.Sim.Tick(req.N)
	return m.deps.Sim.Ticks(), nil
}

func (m *Manager) handleStatus(dispatcher.Event) (any, error) {
	return m.deps.Sim.Status(), nil
}
