// Package worker binds the formation commands to the dispatcher.
package worker

import (
	"log/slog"

	"github.com/railsim/formation/internal/parser"
	"github.com/railsim/formation/internal/sim"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Sim           *sim.Simulation
	ParserService parser.Service
	Logger        *slog.Logger
}

// Manager turns dispatched events into simulation calls.
type Manager struct {
	deps Dependencies
	log  *slog.Logger
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.ParserService == nil {
		deps.ParserService = parser.NewParser(logger)
	}
	return &Manager{deps: deps, log: logger}
}
